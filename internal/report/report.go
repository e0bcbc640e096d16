// Package report holds the field report model and the in-memory snapshot the
// dashboard renders from.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
)

type Status string

const (
	// StatusAny selects every status in filters.
	StatusAny      Status = ""
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

func ParseStatus(value string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusPending, StatusVerified, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("unknown report status %q", value)
	}
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusVerified || s == StatusRejected
}

var statusLabels = map[Status]string{
	StatusPending:  "Pending",
	StatusVerified: "Verified",
	StatusRejected: "Rejected",
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Record is a report as the backend sends it.
type Record struct {
	ID           string `json:"id"`
	ObserverID   string `json:"observer_id"`
	IncidentType string `json:"incident_type"`
	Description  string `json:"description"`
	GPSLocation  string `json:"gps_location"`
	H3Index      string `json:"h3_index"`
	Status       string `json:"status"`
	ProofURL     string `json:"proof_url"`
	CreatedAt    string `json:"created_at"`
	AuthorRole   string `json:"author_role"`
}

// Report is a normalised Record. Status is always one of the three values.
type Report struct {
	ID           string
	ObserverID   string
	IncidentType string
	Description  string
	Location     Location
	// HasLocation is false when gps_location did not parse; such reports
	// stay listed but are left off the map.
	HasLocation bool
	H3Index     string
	Status      Status
	ProofURL    string
	// CreatedAt is zero when created_at did not parse.
	CreatedAt  time.Time
	AuthorRole string
}

// Normalize converts a wire record. Records without an id or with an unknown
// status are rejected; an empty status is the backend default, pending.
func Normalize(rec Record) (Report, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return Report{}, fmt.Errorf("report without id")
	}
	status := StatusPending
	if strings.TrimSpace(rec.Status) != "" {
		parsed, err := ParseStatus(rec.Status)
		if err != nil {
			return Report{}, fmt.Errorf("report %s: %w", id, err)
		}
		status = parsed
	}

	r := Report{
		ID:           id,
		ObserverID:   rec.ObserverID,
		IncidentType: rec.IncidentType,
		Description:  rec.Description,
		H3Index:      rec.H3Index,
		Status:       status,
		ProofURL:     rec.ProofURL,
		AuthorRole:   rec.AuthorRole,
	}
	if loc, err := ParsePoint(rec.GPSLocation); err == nil {
		r.Location = loc
		r.HasLocation = true
	}
	if ts, err := parseRFC3339(rec.CreatedAt); err == nil {
		r.CreatedAt = ts
	}
	return r, nil
}

// NormalizeAll keeps the first occurrence of each id and drops records that
// do not normalise, logging each drop.
func NormalizeAll(records []Record) []Report {
	out := make([]Report, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		r, err := Normalize(rec)
		if err != nil {
			log.WithError(err).Warn("report: dropping record")
			continue
		}
		if _, dup := seen[r.ID]; dup {
			log.WithField("id", r.ID).Warn("report: dropping duplicate id")
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// parseRFC3339 tolerates the millisecond form produced by JavaScript clients.
func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err
}
