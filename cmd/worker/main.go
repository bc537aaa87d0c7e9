package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insights-export/internal/app"
	"insights-export/internal/config"
)

// Worker - Drives exports in the background
// Steps every active export once per tick and finalizes complete ones
// Scales horizontally with Redis job locks (REDIS_ENABLED=true)

func main() {
	log.Println("[WORKER] Starting Export Worker")

	if err := godotenv.Load(); err != nil {
		log.Println("[WORKER] No .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[WORKER] Failed to load configuration: %v", err)
	}

	if cfg.Database.Type == "memory" || cfg.Database.Type == "sqlite" {
		log.Printf("[WORKER] WARNING: %s storage is not shared with API pods", cfg.Database.Type)
	}
	if !cfg.Redis.Enabled {
		log.Println("[WORKER] WARNING: Redis is disabled, run a single worker replica")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("[WORKER] Failed to initialize export services: %v", err)
	}
	defer services.Close()

	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		go func() {
			log.Printf("[WORKER] Starting metrics server on %s%s", metricsAddr, cfg.Metrics.Path)
			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
				log.Printf("[WORKER] Metrics server error: %v", err)
			}
		}()
	}

	stepScheduler := services.Scheduler()
	done := make(chan error, 1)
	go func() { done <- stepScheduler.Start(ctx) }()

	log.Printf("[WORKER] Driving exports every %v as %s", cfg.Driver.StepInterval, cfg.Driver.InstanceID)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("[WORKER] Shutting down worker...")
		cancel()
	case err := <-done:
		if err != nil {
			log.Fatalf("[WORKER] Step scheduler failed: %v", err)
		}
		log.Println("[WORKER] Worker exited")
		return
	}

	// Give the in-flight tick a chance to finish
	select {
	case <-done:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Println("[WORKER] Timed out waiting for in-flight steps")
	}

	log.Println("[WORKER] Worker exited")
}
