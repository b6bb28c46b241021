package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"feedbot/internal/metrics"
	"feedbot/internal/model"
)

type mockScanner struct {
	calls atomic.Int32
	notes []model.Notification
	err   error
	block chan struct{} // when set, Scan waits for it to close
}

func (m *mockScanner) Scan(ctx context.Context) ([]model.Notification, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.notes, m.err
}

type mockDispatcher struct {
	mu      sync.Mutex
	batches [][]model.Notification
}

func (m *mockDispatcher) Dispatch(_ context.Context, notes []model.Notification) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, notes)
	return len(notes)
}

func (m *mockDispatcher) getBatches() [][]model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]model.Notification, len(m.batches))
	copy(cp, m.batches)
	return cp
}

func newTestScheduler(sc Scanner, d Dispatcher) (*Scheduler, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sc, d, m, log), m
}

func TestRunCycleDispatchesScanResults(t *testing.T) {
	notes := []model.Notification{
		{UserID: 1, Link: "L1"},
		{UserID: 2, Link: "L2"},
	}
	sc := &mockScanner{notes: notes}
	d := &mockDispatcher{}
	sched, m := newTestScheduler(sc, d)

	sched.runCycle(context.Background())

	if diff := cmp.Diff([][]model.Notification{notes}, d.getBatches()); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(m.ScanCycles.WithLabelValues(metrics.ResultOK)); got != 1 {
		t.Errorf("ok cycles = %v, want 1", got)
	}
}

func TestRunCycleNothingFound(t *testing.T) {
	d := &mockDispatcher{}
	sched, _ := newTestScheduler(&mockScanner{}, d)

	sched.runCycle(context.Background())

	if len(d.getBatches()) != 0 {
		t.Errorf("dispatcher called for an empty cycle: %v", d.getBatches())
	}
}

func TestRunCycleScanError(t *testing.T) {
	tests := []struct {
		name        string
		notes       []model.Notification
		wantBatches int
	}{
		{name: "nothing to deliver", notes: nil, wantBatches: 0},
		{name: "partial results are still delivered", notes: []model.Notification{{UserID: 1, Link: "L1"}}, wantBatches: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{}
			sched, m := newTestScheduler(&mockScanner{notes: tt.notes, err: errors.New("boom")}, d)

			sched.runCycle(context.Background())

			if diff := cmp.Diff(tt.wantBatches, len(d.getBatches())); diff != "" {
				t.Errorf("batch count mismatch (-want +got):\n%s", diff)
			}
			if got := testutil.ToFloat64(m.ScanCycles.WithLabelValues(metrics.ResultFailed)); got != 1 {
				t.Errorf("failed cycles = %v, want 1", got)
			}
		})
	}
}

func TestTriggerSkipsWhileCycleRuns(t *testing.T) {
	sc := &mockScanner{block: make(chan struct{})}
	sched, m := newTestScheduler(sc, &mockDispatcher{})
	ctx := context.Background()

	if !sched.trigger(ctx) {
		t.Fatal("first trigger should start a cycle")
	}
	if sched.trigger(ctx) {
		t.Error("second trigger should be skipped while the first cycle runs")
	}
	if got := testutil.ToFloat64(m.ScanSkipped); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}

	close(sc.block)
	sched.wg.Wait()

	if !sched.trigger(ctx) {
		t.Error("trigger after the cycle finished should start a new cycle")
	}
	sched.wg.Wait()

	if got := sc.calls.Load(); got != 2 {
		t.Errorf("scan calls = %d, want 2", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sc := &mockScanner{}
	sched, _ := newTestScheduler(sc, &mockDispatcher{})
	sched.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sc.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not run repeated cycles")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWaitsForCycleInFlight(t *testing.T) {
	sc := &mockScanner{block: make(chan struct{})}
	sched, _ := newTestScheduler(sc, &mockDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	for sc.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the blocked cycle saw cancellation")
	}
}
