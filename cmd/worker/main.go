package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/bootstrap"
	"github.com/dvloznov/academy-cashbook/internal/closing"
	"github.com/dvloznov/academy-cashbook/internal/config"
	"github.com/dvloznov/academy-cashbook/internal/jobs/inmemory"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closeAt := flag.String("close-at", cfg.DayCloseAt, "Daily close time HH:MM in the business time zone (or set DAY_CLOSE_AT)")
	flag.Parse()

	// Initialize logger
	log := bootstrap.Logger(cfg)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	hour, minute, err := closing.ParseClockTime(*closeAt)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -close-at")
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("record_store", cfg.RecordStore).Msg("Failed to open record store")
	}
	defer closeStore()

	closer, closeCloser, err := bootstrap.NewCloser(ctx, cfg, reconcile.NewEngine(store, cfg.Location), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create day closer")
	}
	defer closeCloser()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, cfg.JobWorkers, jobStore)

	log.Info().Str("close_at", *closeAt).Str("timezone", cfg.Timezone).Msg("Starting worker service")

	// Start consuming jobs
	if err := jobQueue.Start(ctx, closer.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler, err := closing.NewScheduler(jobQueue, cfg.Location, hour, minute)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Scheduler stopped with error")
		}
	}()

	log.Info().Msg("Worker service started, waiting for the daily close...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	// Cancel context to stop the scheduler
	cancel()

	log.Info().Msg("Worker service exited")
}
