package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/pdvsuite/pdv-sync/internal/api"
	"github.com/pdvsuite/pdv-sync/internal/config"
	"github.com/pdvsuite/pdv-sync/internal/service"
	"github.com/pdvsuite/pdv-sync/internal/store"
	"github.com/pdvsuite/pdv-sync/pkg/infra"
	_ "github.com/pdvsuite/pdv-sync/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	if cfg.StoreID == 0 {
		logger.Error("CRITICAL: STORE_ID environment variable is missing")
		os.Exit(1)
	}

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Sync agent initializing", "store_id", cfg.StoreID, "schedule", cfg.SyncSchedule)

	local, err := store.Open(cfg.LocalDBPath, logger)
	if err != nil {
		logger.Error("CRITICAL: local database unavailable", "error", err)
		os.Exit(1)
	}
	defer local.Close()

	if err := local.Init(ctx); err != nil {
		logger.Error("CRITICAL: local schema creation failed", "error", err)
		os.Exit(1)
	}

	remote := api.NewClient(cfg.APIURL, cfg.APIKey, cfg.StoreID, cfg.RequestTimeout, logger)
	settings := store.NewSettingsStore(local.DB())
	syncer := service.NewSyncer(local, remote, settings, nil, cfg.PullPageSize, logger)

	go startObservabilityServer(cfg.MetricsPort, logger)

	// First pass at boot, retried with backoff while the backend is
	// unreachable; the schedule takes over afterwards
	go runInitialPass(ctx, syncer, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SyncSchedule, func() {
		if err := syncer.Run(ctx); err != nil && !errors.Is(err, service.ErrOffline) {
			logger.Error("Scheduled sync pass failed", "error", err)
		}
	}); err != nil {
		logger.Error("CRITICAL: invalid SYNC_SCHEDULE", "schedule", cfg.SyncSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	<-ctx.Done()
	logger.Info("Shutting down sync agent...")
	<-scheduler.Stop().Done()
	logger.Info("Shutdown complete")
}

func runInitialPass(ctx context.Context, syncer *service.Syncer, logger *slog.Logger) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		err := syncer.Run(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		wait := backoff.Next()
		if errors.Is(err, service.ErrOffline) {
			logger.Warn("Backend offline, retrying initial sync", "wait", wait)
		} else {
			logger.Error("Initial sync failed, retrying", "wait", wait, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("AGENT ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
