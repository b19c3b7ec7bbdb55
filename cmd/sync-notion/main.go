package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/bootstrap"
	"github.com/dvloznov/academy-cashbook/internal/config"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/notionsync"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger
	log := bootstrap.Logger(cfg)

	// Parse CLI flags
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (defaults to start-date)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionClosingsDB, "Notion closings database ID (or set NOTION_CLOSINGS_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if *endDateStr == "" {
		*endDateStr = *startDateStr
	}

	// Parse dates
	startDate, err := reconcile.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}

	endDate, err := reconcile.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("start_date", *startDateStr).
		Str("end_date", *endDateStr).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	publisher := notionsync.NewPublisher(notionsync.NewNotionClient(*notionToken), *notionDBID).WithDryRun(*dryRun)

	stats, err := notionsync.SyncClosings(ctx, reconcile.NewEngine(store, cfg.Location), publisher, startDate, endDate, time.Now)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync finished: %d created, %d updated, %d failed.\n", stats.Created, stats.Updated, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
