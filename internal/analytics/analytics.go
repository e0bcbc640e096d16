// Package analytics derives the dashboard statistics from a report snapshot.
// Every function is pure: the same snapshot always gives the same result.
package analytics

import (
	"sort"
	"time"

	"openvote/dashboard/internal/report"
)

const (
	TopObserverCount = 5
	RecentCount      = 10
)

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type View struct {
	Total           int                   `json:"total"`
	Last24h         int                   `json:"last_24h"`
	StatusTotals    map[report.Status]int `json:"status_counts"`
	Breakdown       []Count               `json:"incident_counts"`
	Hourly          [24]int               `json:"hourly_counts"`
	TopObservers    []Count               `json:"top_observers"`
	Recent          []report.Report       `json:"-"`
	UniqueObservers int                   `json:"unique_observers"`
}

// Compute builds the whole view. Hours are read in loc; a nil loc is UTC.
func Compute(reports []report.Report, now time.Time, loc *time.Location) View {
	recent := reports
	if len(recent) > RecentCount {
		recent = recent[:RecentCount]
	}
	return View{
		Total:           len(reports),
		Last24h:         Last24h(reports, now),
		StatusTotals:    StatusTotals(reports),
		Breakdown:       Breakdown(reports),
		Hourly:          Hourly(reports, loc),
		TopObservers:    TopObservers(reports, TopObserverCount),
		Recent:          append([]report.Report(nil), recent...),
		UniqueObservers: UniqueObservers(reports),
	}
}

// Breakdown counts reports per incident type, most frequent first. Equal
// counts keep the order in which the types first appear.
func Breakdown(reports []report.Report) []Count {
	return rankBy(reports, func(r report.Report) (string, bool) {
		return r.IncidentType, true
	})
}

// TopObservers is the n most prolific observers, ties broken by first
// appearance. Reports without an observer are not counted.
func TopObservers(reports []report.Report, n int) []Count {
	ranked := rankBy(reports, func(r report.Report) (string, bool) {
		return r.ObserverID, r.ObserverID != ""
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Hourly buckets reports by hour of day in loc. Reports whose timestamp did
// not parse are left out.
func Hourly(reports []report.Report, loc *time.Location) [24]int {
	if loc == nil {
		loc = time.UTC
	}
	var buckets [24]int
	for _, r := range reports {
		if r.CreatedAt.IsZero() {
			continue
		}
		buckets[r.CreatedAt.In(loc).Hour()]++
	}
	return buckets
}

func StatusTotals(reports []report.Report) map[report.Status]int {
	totals := map[report.Status]int{
		report.StatusPending:  0,
		report.StatusVerified: 0,
		report.StatusRejected: 0,
	}
	for _, r := range reports {
		totals[r.Status]++
	}
	return totals
}

// Last24h counts reports created in the 24 hours up to now.
func Last24h(reports []report.Report, now time.Time) int {
	n := 0
	for _, r := range reports {
		if r.CreatedAt.IsZero() {
			continue
		}
		age := now.Sub(r.CreatedAt)
		if age >= 0 && age < 24*time.Hour {
			n++
		}
	}
	return n
}

func UniqueObservers(reports []report.Report) int {
	seen := make(map[string]struct{})
	for _, r := range reports {
		if r.ObserverID != "" {
			seen[r.ObserverID] = struct{}{}
		}
	}
	return len(seen)
}

func rankBy(reports []report.Report, key func(report.Report) (string, bool)) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, r := range reports {
		k, ok := key(r)
		if !ok {
			continue
		}
		i, seen := index[k]
		if !seen {
			i = len(counts)
			index[k] = i
			counts = append(counts, Count{Key: k})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if counts == nil {
		counts = []Count{}
	}
	return counts
}
