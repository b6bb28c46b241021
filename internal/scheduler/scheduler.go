// Package scheduler runs scan cycles on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"feedbot/internal/metrics"
	"feedbot/internal/model"
)

// DefaultInterval is the time between scan cycles.
const DefaultInterval = 300 * time.Second

// Scanner produces the new items of one cycle.
type Scanner interface {
	Scan(ctx context.Context) ([]model.Notification, error)
}

// Dispatcher delivers the items of one cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, notes []model.Notification) int
}

// Scheduler periodically scans feeds and dispatches notifications.
// At most one cycle runs at a time.
type Scheduler struct {
	scanner    Scanner
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        *slog.Logger
	tick       time.Duration

	running *semaphore.Weighted
	wg      sync.WaitGroup
}

// New creates a Scheduler. m may be nil.
func New(scanner Scanner, dispatcher Dispatcher, m *metrics.Metrics, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scanner:    scanner,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
		tick:       DefaultInterval,
		running:    semaphore.NewWeighted(1),
	}
}

// SetTickInterval overrides the default 300-second interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts a cycle immediately and then on every tick, blocking until ctx
// is cancelled and the cycle in flight has returned.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	s.trigger(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// trigger starts a cycle in the background unless one is still running.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.TryAcquire(1) {
		s.log.Warn("previous scan still running, skipping tick")
		s.metrics.RecordSkipped()
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Release(1)
		s.runCycle(ctx)
	}()
	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()

	notes, err := s.scanner.Scan(ctx)
	if err != nil {
		s.log.Error("scan cycle", "error", err)
	}

	sent := 0
	if len(notes) > 0 {
		sent = s.dispatcher.Dispatch(ctx, notes)
	}

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultFailed
	}
	elapsed := time.Since(start)
	s.metrics.RecordCycle(result, elapsed.Seconds())
	s.log.Info("cycle finished", "found", len(notes), "sent", sent, "elapsed", elapsed)
}
