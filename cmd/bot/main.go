package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"feedbot/internal/app"
	"feedbot/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("start", "error", err)
		return 1
	}

	log.Info("starting bot",
		"database_driver", cfg.DatabaseDriver,
		"scan_interval", cfg.ScanInterval,
		"scan_workers", cfg.ScanWorkers,
	)

	return serve(ctx, a, log)
}

type service interface {
	Run(ctx context.Context) error
	Close() error
}

// serve runs svc until it returns and reports the process exit status.
func serve(ctx context.Context, svc service, log *slog.Logger) int {
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("close", "error", err)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Error("bot stopped", "error", err)
		return 1
	}

	log.Info("bot stopped")
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
