// Package legal asks the qualification service which articles of the
// electoral code a report may fall under and keeps the answer for the report
// currently selected in the dashboard.
package legal

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/apex/log"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/metrics"
)

// ErrSuperseded is returned when the selection moved on while a
// qualification was in flight. The result was dropped.
var ErrSuperseded = errors.New("legal: selection changed during qualification")

type Match struct {
	ReportID        string  `json:"report_id"`
	ArticleID       string  `json:"article_id"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchType       string  `json:"match_type"`
	Notes           string  `json:"notes"`
	ArticleNumber   string  `json:"article_number"`
	ArticleTitle    string  `json:"article_title"`
	ArticleContent  string  `json:"article_content"`
}

// Qualifier is the remote qualification call.
type Qualifier interface {
	Qualify(ctx context.Context, reportID string) ([]Match, error)
}

// Result is one qualification answer. An empty Matches is a real answer:
// nothing in the corpus was close enough.
type Result struct {
	ReportID string
	Matches  []Match
}

func (r Result) NoMatches() bool {
	return len(r.Matches) == 0
}

type Adapter struct {
	qualifier Qualifier
	metrics   *metrics.Set

	mu       sync.Mutex
	selected string
	gen      uint64
	current  *Result
}

func NewAdapter(q Qualifier, m *metrics.Set) *Adapter {
	return &Adapter{qualifier: q, metrics: m}
}

// Select makes reportID the report the panel shows. Choosing a different
// report drops the previous result.
func (a *Adapter) Select(reportID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if reportID == a.selected {
		return
	}
	a.selected = reportID
	a.current = nil
	a.gen++
}

// Close empties the panel.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selected = ""
	a.current = nil
	a.gen++
}

func (a *Adapter) Selected() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

func (a *Adapter) Current() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Result{}, false
	}
	return *a.current, true
}

// Qualify selects reportID and asks for its matches, sorted by descending
// similarity. A collaborator failure is an ErrQualification; the previous
// result for the report is kept in that case.
func (a *Adapter) Qualify(ctx context.Context, reportID string) (Result, error) {
	if reportID == "" {
		return Result{}, apperr.Validation("MISSING_REPORT", "select a report to qualify")
	}
	a.Select(reportID)
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()

	matches, err := a.qualifier.Qualify(ctx, reportID)
	if err != nil {
		if !a.stillSelected(gen) && !apperr.IsAuthorizationExpired(err) {
			a.metrics.Qualify("discarded")
			log.WithError(err).WithField("report", reportID).Debug("legal: dropping failure for deselected report")
			return Result{}, ErrSuperseded
		}
		a.metrics.Qualify("error")
		log.WithError(err).WithField("report", reportID).Warn("legal: qualification failed")
		return Result{}, apperr.Wrap(apperr.ErrQualification, "QUALIFICATION_FAILED", "legal qualification is unavailable", err)
	}

	res := Result{ReportID: reportID, Matches: rank(reportID, matches)}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		a.metrics.Qualify("discarded")
		log.WithField("report", reportID).Debug("legal: dropping result for deselected report")
		return Result{}, ErrSuperseded
	}
	a.current = &res
	if res.NoMatches() {
		a.metrics.Qualify("no_matches")
	} else {
		a.metrics.Qualify("matched")
	}
	return res, nil
}

// stillSelected reports whether no Select or Close happened since gen.
func (a *Adapter) stillSelected(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen == gen
}

// rank copies matches, clamps scores to [0,1] and orders them by descending
// score. Equal scores keep the service's order.
func rank(reportID string, matches []Match) []Match {
	out := make([]Match, len(matches))
	copy(out, matches)
	for i := range out {
		switch {
		case out[i].SimilarityScore < 0:
			out[i].SimilarityScore = 0
		case out[i].SimilarityScore > 1:
			out[i].SimilarityScore = 1
		}
		if out[i].ReportID == "" {
			out[i].ReportID = reportID
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	return out
}
