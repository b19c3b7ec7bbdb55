package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/api"
	"github.com/dvloznov/academy-cashbook/internal/bootstrap"
	"github.com/dvloznov/academy-cashbook/internal/config"
	"github.com/dvloznov/academy-cashbook/internal/jobs/inmemory"
	"github.com/dvloznov/academy-cashbook/internal/ledger"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	// Initialize logger
	log := bootstrap.Logger(cfg)
	ctx := logger.WithContext(context.Background(), log)

	// Initialize record store
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("record_store", cfg.RecordStore).Msg("Failed to open record store")
	}
	defer closeStore()

	engine := reconcile.NewEngine(store, cfg.Location)
	cashLedger := ledger.New(store)

	closer, closeCloser, err := bootstrap.NewCloser(ctx, cfg, engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create day closer")
	}
	defer closeCloser()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.JobWorkers, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.JobWorkers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, closer.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := api.NewRouter(api.Deps{
		Reports:  engine,
		Ledger:   cashLedger,
		Closings: jobQueue,
		Jobs:     jobStore,
		Location: cfg.Location,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", *port).
			Str("record_store", cfg.RecordStore).
			Str("timezone", cfg.Timezone).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
