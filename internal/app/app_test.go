package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"feedbot/internal/config"
	"feedbot/internal/metrics"
	"feedbot/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.db")
	store, err := OpenStore(context.Background(), &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabasePath:   path,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.AddUser(context.Background(), 1); err != nil {
		t.Errorf("add user on fresh store: %v", err)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{DatabaseDriver: "mysql"})
	if err == nil || !strings.Contains(err.Error(), "unsupported database driver") {
		t.Errorf("expected unsupported driver error, got %v", err)
	}
}

func TestMetricsMux(t *testing.T) {
	m := metrics.NewWithRuntime()
	m.RecordSkipped()
	srv := httptest.NewServer(metricsMux(m))
	defer srv.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", "ok"},
		{"/metrics", "feedbot_scan_skipped_total 1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body missing %q", tt.contains)
			}
		})
	}
}

type stubFetcher struct {
	entries []model.Entry
}

func (f *stubFetcher) Entries(_ context.Context, _ string) ([]model.Entry, error) {
	return f.entries, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) SendMessage(_ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func TestSchedulerPipeline(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabasePath:   filepath.Join(t.TempDir(), "bot.db"),
		ScanInterval:   time.Hour,
		ScanWorkers:    2,
		SearchURL:      "http://127.0.0.1:0/",
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.AddUser(ctx, 100); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := store.SetActive(ctx, 100); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := store.CreateFeed(ctx, []string{"macbook"}, 100, "https://techwire.example.com/rss", model.FeedTypeRSS); err != nil {
		t.Fatalf("create feed: %v", err)
	}

	published := time.Now().Add(-time.Hour).UTC()
	f := &stubFetcher{entries: []model.Entry{
		{Title: "New MacBook", Link: "https://techwire.example.com/macbook", Content: "laptop", HasContent: true, Published: &published},
		{Title: "Chips", Link: "https://techwire.example.com/chips", Content: "fabs", HasContent: true, Published: &published},
	}}
	sender := &recordingSender{}

	sched := NewScheduler(cfg, store, f, sender, nil, discardLogger())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		sched.Run(runCtx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		sent, err := store.IsSent(ctx, 100, "https://techwire.example.com/macbook")
		if err != nil {
			t.Fatalf("is sent: %v", err)
		}
		if sent {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("delivered link was not recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	want := []string{"New MacBook\n\nhttps://techwire.example.com/macbook"}
	if diff := cmp.Diff(want, sender.texts()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}
