// Package bootstrap builds the services shared by the API server and the CLI
// from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dvloznov/academy-cashbook/internal/archive"
	"github.com/dvloznov/academy-cashbook/internal/closing"
	"github.com/dvloznov/academy-cashbook/internal/config"
	infraBQ "github.com/dvloznov/academy-cashbook/internal/infra/bigquery"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/notionsync"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"github.com/dvloznov/academy-cashbook/internal/records/inmemory"
	"github.com/dvloznov/academy-cashbook/internal/records/postgres"
	"github.com/rs/zerolog"
)

// Logger builds the process logger from cfg.
func Logger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

// OpenStore opens the record store selected by cfg. The returned close
// function releases the store's connections.
func OpenStore(ctx context.Context, cfg *config.Config) (records.Store, func() error, error) {
	switch cfg.RecordStore {
	case config.StoreMemory:
		return inmemory.NewStore(), func() error { return nil }, nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, s.Close, nil
	case config.StoreBigQuery:
		s, err := infraBQ.NewStore(ctx, infraBQ.Dataset{ProjectID: cfg.BQProjectID, DatasetID: cfg.BQDataset})
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("OpenStore: unknown record store %q", cfg.RecordStore)
}

// NewCloser builds the day closer over reports, attaching the snapshot
// archive and the Notion publisher when cfg enables them. The returned close
// function releases the archive's storage client.
func NewCloser(ctx context.Context, cfg *config.Config, reports closing.ReportSource, log zerolog.Logger) (*closing.Closer, func() error, error) {
	log = logger.Component(log, "closing")
	var opts []closing.Option
	cleanup := func() error { return nil }

	if cfg.ArchiveEnabled() {
		gcs, err := archive.NewGCSObjectStore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("NewCloser: %w", err)
		}
		cleanup = gcs.Close
		opts = append(opts, closing.WithArchive(archive.New(gcs, cfg.ArchiveBucket)))
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Day-close snapshots enabled")
	} else {
		log.Warn().Msg("No ARCHIVE_BUCKET configured - day-close snapshots will be disabled")
	}

	if cfg.NotionEnabled() {
		publisher := notionsync.NewPublisher(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionClosingsDB)
		opts = append(opts, closing.WithPublisher(publisher))
		log.Info().Msg("Notion day-close publishing enabled")
	}

	return closing.New(reports, opts...), cleanup, nil
}
