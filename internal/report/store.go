package report

import (
	"strings"
	"sync"

	"github.com/golang/geo/s2"
)

// Store is the current report snapshot. Writers replace it wholesale; there
// is no partial merge. Readers always get copies.
type Store struct {
	mu      sync.RWMutex
	order   []Report
	byID    map[string]int
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: map[string]int{}}
}

// ReplaceAll swaps the snapshot. reports must already have unique ids, which
// NormalizeAll guarantees; a later duplicate would shadow nothing and is
// skipped.
func (s *Store) ReplaceAll(reports []Report) {
	order := make([]Report, 0, len(reports))
	byID := make(map[string]int, len(reports))
	for _, r := range reports {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = len(order)
		order = append(order, r)
	}

	s.mu.Lock()
	s.order = order
	s.byID = byID
	s.version++
	s.mu.Unlock()
}

// Clear empties the store and bumps its version.
func (s *Store) Clear() {
	s.ReplaceAll(nil)
}

// Version changes on every replace, so readers can tell when to recompute.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len is the number of reports held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get looks a report up by id.
func (s *Store) Get(id string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Report{}, false
	}
	return s.order[i], true
}

// Snapshot returns every report in the order the backend sent them.
func (s *Store) Snapshot() []Report {
	return s.collect(func(Report) bool { return true })
}

// Filter returns the reports with the given status, or all of them for
// StatusAny.
func (s *Store) Filter(status Status) []Report {
	if status == StatusAny {
		return s.Snapshot()
	}
	return s.collect(func(r Report) bool { return r.Status == status })
}

// Search matches query case-insensitively as a substring of the incident
// type, description, observer id or report id. An empty query matches all.
func (s *Store) Search(query string) []Report {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Snapshot()
	}
	return s.collect(func(r Report) bool {
		return strings.Contains(strings.ToLower(r.IncidentType), q) ||
			strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(strings.ToLower(r.ObserverID), q) ||
			strings.Contains(strings.ToLower(r.ID), q)
	})
}

// Within returns the located reports inside rect.
func (s *Store) Within(rect s2.Rect) []Report {
	return s.collect(func(r Report) bool {
		return r.HasLocation && rect.ContainsLatLng(r.Location.LatLng())
	})
}

func (s *Store) collect(keep func(Report) bool) []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0, len(s.order))
	for _, r := range s.order {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
