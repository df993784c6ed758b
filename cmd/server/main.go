package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/moki-tracker/internal/api"
	"github.com/codyseavey/moki-tracker/internal/config"
	"github.com/codyseavey/moki-tracker/internal/database"
	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := applog.Initialize(applog.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer applog.Sync()
	log := applog.L()

	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := services.NewApp(cfg, database.GetDB())
	defer app.Close()

	if !app.Moralis.IsEnabled() {
		log.Warn("MORALIS_API_KEY not set: history, wallet NFTs and RON price are unavailable")
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runWorker(ctx, "floor worker", app.FloorWorker.Start)
	go runWorker(ctx, "snapshot service", app.Snapshots.Start)

	router := api.SetupRouter(api.Services{
		Market:    app.Dashboard,
		Portfolio: app.Portfolio,
		Snapshots: app.Snapshots,
		Floor:     app.FloorWorker,
	}, api.Options{
		CORSOrigins:      cfg.CORSOrigins,
		FrontendDistPath: cfg.FrontendDistPath,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop the workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// runWorker runs start until it returns or ctx is cancelled, restarting
// it 30 seconds after a panic
func runWorker(ctx context.Context, name string, start func(context.Context)) {
	log := applog.L()
	for {
		panicked := false
		func() {
			defer func() {
				if r := recover(); r != nil {
					panicked = true
					log.Errorf("PANIC in %s: %v - restarting in 30 seconds", name, r)
				}
			}()
			start(ctx)
		}()
		if !panicked {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
			log.Infof("%s restarting after panic recovery...", name)
		}
	}
}
