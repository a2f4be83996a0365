package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-dashboard/internal/app"
	"github.com/ignite/campaign-dashboard/internal/config"
	"github.com/ignite/campaign-dashboard/internal/worker"
)

func main() {
	log.Println("[Worker] Starting campaign scheduler worker (cmd/worker)")

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("[Worker] Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Worker] Invalid configuration:\n%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[Worker] Startup failed: %v", err)
	}
	defer a.Close()
	log.Println("[Worker] Connected to database")

	scheduler := a.Scheduler()
	if err := scheduler.Start(); err != nil {
		log.Fatalf("[Worker] Failed to start scheduler: %v", err)
	}

	cleanup := worker.NewDataCleanupWorker(a.DB, cfg.Scheduler.JobRetentionDays, cfg.Scheduler.LogRetentionDays)
	go cleanup.Start(ctx)

	// Metrics only; the worker has no API.
	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if !scheduler.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("[Worker] Metrics on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Worker] Metrics server error: %v", err)
		}
	}()

	log.Printf("[Worker] Running (poll every %s, lease %s, max attempts %d)",
		cfg.Scheduler.Interval(), cfg.Scheduler.Lease(), cfg.Scheduler.MaxAttempts)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Worker] Shutting down...")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Println("[Worker] Stopped")
}
