package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/campaign-dashboard/internal/api"
	"github.com/ignite/campaign-dashboard/internal/app"
	"github.com/ignite/campaign-dashboard/internal/config"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v\n"+
			"  Hint: Run 'lsof -i :<port>' to find the blocking process", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("[Server] Starting campaign dashboard API (cmd/server)")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Server] Invalid configuration:\n%v", err)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("[Server] Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("[Server] Connecting to database at ...@%s/...", extractHost(cfg.Database.URL))
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[Server] Startup failed: %v", err)
	}
	defer a.Close()
	log.Printf("[Server] Services initialized (redis=%v, storage=%s, auth=%s)", a.Redis != nil, cfg.Storage.Type, cfg.Auth.Mode)

	var scheduler *worker.CampaignScheduler
	var schedulerState api.SchedulerState
	if cfg.Server.RunScheduler {
		scheduler = a.Scheduler()
		if err := scheduler.Start(); err != nil {
			log.Printf("[Server] Warning: Failed to start campaign scheduler: %v", err)
		} else {
			schedulerState = scheduler
			log.Printf("[Server] Campaign scheduler started (poll every %s)", cfg.Scheduler.Interval())
		}
	} else {
		log.Println("[Server] Embedded scheduler disabled; run cmd/worker to send scheduled campaigns")
	}

	server := api.NewServer(cfg.Server, a.APIServices(), api.RouterConfig{
		Verifier: a.Verifier(),
		Limiter:  a.Limiter(ctx),
		Metrics:  a.Metrics,
		Health:   api.NewHealthChecker(a.DB, a.RedisCmdable(), schedulerState),
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] Server error: %v", err)
		}
	}()

	<-done
	log.Println("[Server] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Println("[Server] Stopped")
}
