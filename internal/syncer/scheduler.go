// Package syncer keeps the report snapshot fresh on a fixed countdown.
//
// Fetches may overlap when a manual refresh races a scheduled one. Each fetch
// carries the sequence number it was issued with, and a response is applied
// only if no later-issued fetch has been applied already, so the snapshot
// always reflects issue order rather than arrival order.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/metrics"
	"openvote/dashboard/internal/report"
)

const DefaultInterval = 15

// ErrStopped is returned by Refresh and SetFilter while the scheduler is not
// running, before Start or after Stop.
var ErrStopped = apperr.New(apperr.ErrNoSession, "SYNC_STOPPED", "report sync is not running")

type Fetcher interface {
	FetchReports(ctx context.Context, status report.Status) ([]report.Record, error)
}

type Options struct {
	// Interval is the countdown length in units, DefaultInterval when zero.
	Interval int
	// Unit is the wall time of one countdown step, one second when zero.
	Unit time.Duration
	// OnUnauthorized runs when a fetch is refused with a 401.
	OnUnauthorized func()
	Metrics        *metrics.Set
}

type Scheduler struct {
	fetcher        Fetcher
	store          *report.Store
	interval       int
	unit           time.Duration
	onUnauthorized func()
	metrics        *metrics.Set

	mu        sync.Mutex
	filter    report.Status
	countdown int
	issued    uint64
	applied   uint64
	epoch     uint64
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(fetcher Fetcher, store *report.Store, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Unit <= 0 {
		opts.Unit = time.Second
	}
	return &Scheduler{
		fetcher:        fetcher,
		store:          store,
		interval:       opts.Interval,
		unit:           opts.Unit,
		onUnauthorized: opts.OnUnauthorized,
		metrics:        opts.Metrics,
		countdown:      opts.Interval,
		stopped:        true,
	}
}

// Start fetches once and then steps the countdown every unit until ctx ends
// or Stop is called. Starting a running scheduler is a no-op. Each start
// begins with no status filter.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.arm()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx)
}

// Arm lets Step and Refresh run without the timer goroutine. Callers that
// drive the countdown themselves use it instead of Start.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arm()
}

func (s *Scheduler) arm() {
	s.stopped = false
	s.epoch++
	s.countdown = s.interval
	s.filter = report.StatusAny
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrStopped) {
		log.WithError(err).Warn("syncer: initial fetch failed")
	}

	ticker := time.NewTicker(s.unit)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Stop cancels the timer and waits for it to exit. Any fetch still in flight
// is discarded when it completes.
func (s *Scheduler) Stop() {
	s.Cancel()
	s.wg.Wait()
}

// Cancel is Stop without the wait. It is safe to call from OnUnauthorized,
// which may run on the timer goroutine itself.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Step advances the countdown by one unit. When it reaches zero a fetch is
// issued and Step reports true. Fetch failures are logged and swallowed; the
// next cycle retries.
func (s *Scheduler) Step(ctx context.Context) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.countdown--
	due := s.countdown <= 0
	left := s.countdown
	s.mu.Unlock()

	if !due {
		s.metrics.CountdownAt(left)
		return false
	}
	if err := s.Refresh(ctx); err != nil && !apperr.IsAuthorizationExpired(err) {
		log.WithError(err).Warn("syncer: scheduled fetch failed")
	}
	return true
}

// Refresh issues a fetch now with the active filter and resets the countdown,
// whatever the outcome. It returns the fetch error; a 401 also triggers
// OnUnauthorized. A response overtaken by a later-issued one, or arriving
// after Stop, is dropped without error. A stopped scheduler issues nothing
// and returns ErrStopped.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Debug("syncer: refresh skipped, not running")
		return ErrStopped
	}
	s.countdown = s.interval
	s.issued++
	seq := s.issued
	epoch := s.epoch
	filter := s.filter
	s.mu.Unlock()
	s.metrics.CountdownAt(s.interval)

	start := time.Now()
	records, err := s.fetcher.FetchReports(ctx, filter)
	took := time.Since(start)

	entry := log.WithFields(log.Fields{"seq": seq, "filter": string(filter)})

	s.mu.Lock()
	if s.stopped || s.epoch != epoch {
		s.mu.Unlock()
		s.metrics.Fetch(metrics.FetchDiscarded, took)
		entry.Debug("syncer: discarding response after stop")
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		if apperr.IsAuthorizationExpired(err) {
			s.metrics.Fetch(metrics.FetchUnauthorized, took)
			if s.onUnauthorized != nil {
				s.onUnauthorized()
			}
			return err
		}
		s.metrics.Fetch(metrics.FetchError, took)
		return err
	}
	if seq <= s.applied {
		s.mu.Unlock()
		s.metrics.Fetch(metrics.FetchStale, took)
		entry.Debug("syncer: dropping response overtaken by a later fetch")
		return nil
	}
	s.applied = seq
	reports := report.NormalizeAll(records)
	s.store.ReplaceAll(reports)
	s.mu.Unlock()

	s.metrics.Fetch(metrics.FetchApplied, took)
	s.metrics.StoreSize(len(reports))
	entry.WithField("reports", len(reports)).Debug("syncer: snapshot replaced")
	return nil
}

// SetFilter changes the status filter and refreshes immediately. While
// stopped the filter is left alone and ErrStopped is returned.
func (s *Scheduler) SetFilter(ctx context.Context, status report.Status) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.filter = status
	s.mu.Unlock()
	return s.Refresh(ctx)
}

func (s *Scheduler) Filter() report.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Countdown is the number of units until the next scheduled fetch.
func (s *Scheduler) Countdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown
}

// Interval is the full countdown length.
func (s *Scheduler) Interval() int {
	return s.interval
}
