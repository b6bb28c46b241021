// Package app wires the store, scan pipeline, Telegram bot and metrics
// endpoint into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"feedbot/internal/bot"
	"feedbot/internal/config"
	"feedbot/internal/fetcher"
	"feedbot/internal/metrics"
	"feedbot/internal/notify"
	"feedbot/internal/scanner"
	"feedbot/internal/scheduler"
	"feedbot/internal/search"
	"feedbot/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// App is a fully wired bot process.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *storage.SQL
	metrics *metrics.Metrics
	bot     *bot.Bot
	sched   *scheduler.Scheduler
}

// New opens the store and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	f := fetcher.New(httpClient)
	m := metrics.NewWithRuntime()

	b, err := bot.New(cfg.TelegramBotToken, store, f, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: m,
		bot:     b,
		sched:   NewScheduler(cfg, store, f, b, m, log),
	}, nil
}

// NewScheduler assembles the scan and delivery pipeline around store.
func NewScheduler(cfg *config.Config, store *storage.SQL, f scanner.EntryFetcher, sender notify.Sender, m *metrics.Metrics, log *slog.Logger) *scheduler.Scheduler {
	searcher := search.NewHTMLSearcher(&http.Client{}, cfg.SearchURL)

	sc := scanner.New(store, f, searcher, m, log)
	sc.SetWorkers(cfg.ScanWorkers)

	d := notify.New(store, sender, m, log)
	d.SetRate(cfg.SendRate)

	sched := scheduler.New(sc, d, m, log)
	sched.SetTickInterval(cfg.ScanInterval)
	return sched
}

// OpenStore opens the database selected by cfg.DatabaseDriver and applies
// pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*storage.SQL, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		store, err := storage.NewPostgres(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil

	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}
		store, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DatabasePath, err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.bot.Run(ctx)
	})
	g.Go(func() error {
		a.sched.Run(ctx)
		return nil
	})
	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metricsMux(a.metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("metrics server listening", "addr", a.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
