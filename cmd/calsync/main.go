package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calsync/internal/app"
	"calsync/internal/config"
	"calsync/internal/domain"
)

func main() {
	// Flags
	once := flag.Bool("once", false, "Run a single sync and exit")
	integration := flag.Int64("integration", 0, "Integration id to sync (0 with -once syncs all)")
	syncType := flag.String("type", "incremental", "Sync type: full or incremental")
	interval := flag.Duration("interval", 15*time.Minute, "Sync interval when not running once")
	cronSpec := flag.String("cron", "", "Cron expression for scheduled syncs (overrides -interval)")
	addr := flag.String("addr", "", "Listen address for the HTTP trigger server (empty disables it)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	// Logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	st := domain.SyncType(*syncType)
	if st != domain.SyncFull && st != domain.SyncIncremental {
		logger.Error("invalid -type, expected full or incremental", slog.String("type", *syncType))
		os.Exit(1)
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addr == "" {
		*addr = cfg.HTTP.Addr
	}

	// App
	application, err := app.New(logger, cfg)
	if err != nil {
		logger.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer application.Close()

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if *integration > 0 {
			result, err := application.Sync(ctx, *integration, st)
			if err != nil {
				logger.Error("sync failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			logger.Info("sync completed",
				slog.Bool("success", result.Success),
				slog.Int("synced", result.SyncedCount),
				slog.Int("errors", len(result.Errors)),
			)
			if !result.Success {
				os.Exit(1)
			}
			return
		}
		if err := application.SyncAll(ctx, st); err != nil {
			logger.Error("sync failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("sync completed")
		return
	}

	// Optional HTTP trigger server alongside the scheduler.
	if *addr != "" {
		srv := application.HTTPServer(*addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Cron mode
	if *cronSpec != "" {
		c := cron.New()
		_, err := c.AddFunc(*cronSpec, func() {
			if err := application.SyncAll(ctx, st); err != nil {
				logger.Error("scheduled sync failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			logger.Error("invalid -cron expression", slog.String("cron", *cronSpec), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("starting cron sync", slog.String("cron", *cronSpec))
		c.Start()
		<-ctx.Done()
		logger.Info("shutting down")
		<-c.Stop().Done()
		return
	}

	// Periodic mode
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	logger.Info("starting periodic sync", slog.Duration("interval", *interval))
	// Kick off immediately
	if err := application.SyncAll(ctx, st); err != nil {
		logger.Error("initial sync failed", slog.String("error", err.Error()))
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if err := application.SyncAll(ctx, st); err != nil {
				logger.Error("periodic sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
