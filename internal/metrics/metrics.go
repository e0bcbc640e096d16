// Package metrics holds the dashboard engine's Prometheus collectors. A Set is
// built once and handed to each component; a nil *Set records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "openvote"
	subsystem = "dashboard"
)

// Fetch outcomes for SyncFetchTotal.
const (
	FetchApplied      = "applied"
	FetchStale        = "stale"
	FetchDiscarded    = "discarded"
	FetchError        = "error"
	FetchUnauthorized = "unauthorized"
)

type Set struct {
	SyncFetchTotal    *prometheus.CounterVec
	SyncFetchDuration prometheus.Histogram
	ReportsInStore    prometheus.Gauge
	Countdown         prometheus.Gauge
	TransitionTotal   *prometheus.CounterVec
	QualifyTotal      *prometheus.CounterVec
}

// New builds the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		SyncFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_fetch_total",
			Help:      "Report fetches completed by the sync scheduler, labeled by what happened to the response.",
		}, []string{"result"}),
		SyncFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_fetch_duration_seconds",
			Help:      "Time from issuing a report fetch to its completion.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		ReportsInStore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reports_in_store",
			Help:      "Reports in the current snapshot.",
		}),
		Countdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_countdown_units",
			Help:      "Units left before the next scheduled fetch.",
		}),
		TransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transition_total",
			Help:      "Triage transition requests, labeled by result.",
		}, []string{"result"}),
		QualifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "qualify_total",
			Help:      "Legal qualification requests, labeled by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			s.SyncFetchTotal,
			s.SyncFetchDuration,
			s.ReportsInStore,
			s.Countdown,
			s.TransitionTotal,
			s.QualifyTotal,
		)
	}
	return s
}

func (s *Set) Fetch(result string, took time.Duration) {
	if s == nil {
		return
	}
	s.SyncFetchTotal.WithLabelValues(result).Inc()
	s.SyncFetchDuration.Observe(took.Seconds())
}

func (s *Set) StoreSize(n int) {
	if s == nil {
		return
	}
	s.ReportsInStore.Set(float64(n))
}

func (s *Set) CountdownAt(units int) {
	if s == nil {
		return
	}
	s.Countdown.Set(float64(units))
}

func (s *Set) Transition(result string) {
	if s == nil {
		return
	}
	s.TransitionTotal.WithLabelValues(result).Inc()
}

func (s *Set) Qualify(result string) {
	if s == nil {
		return
	}
	s.QualifyTotal.WithLabelValues(result).Inc()
}
