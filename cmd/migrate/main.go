package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/bootstrap"
	"github.com/dvloznov/academy-cashbook/internal/config"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/rs/zerolog"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrator applies migrations to one backend and records them in its
// schema_migrations table.
type migrator interface {
	EnsureSchemaMigrations(ctx context.Context) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
	Apply(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := bootstrap.Logger(cfg)

	var (
		store         = flag.String("store", cfg.RecordStore, "Backend to migrate: postgres or bigquery (or set RECORD_STORE)")
		projectID     = flag.String("project", cfg.BQProjectID, "GCP project ID (or set BQ_PROJECT_ID)")
		datasetID     = flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID (or set BQ_DATASET)")
		databaseURL   = flag.String("database-url", cfg.DatabaseURL, "PostgreSQL connection URL (or set DATABASE_URL)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Path to migrations directory (defaults to migrations/<store>)")
	)
	flag.Parse()

	ctx := logger.WithContext(context.Background(), log)

	dir := *migrationsDir
	if dir == "" {
		dir = filepath.Join("migrations", *store)
	}

	var (
		m            migrator
		replacements map[string]string
	)
	switch *store {
	case config.StorePostgres:
		m, err = newPostgresMigrator(ctx, *databaseURL)
	case config.StoreBigQuery:
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		replacements = map[string]string{"{{PROJECT_ID}}": *projectID, "{{DATASET_ID}}": *datasetID}
		m, err = newBigQueryMigrator(ctx, *projectID, *datasetID)
	default:
		log.Fatal().Str("store", *store).Msg("Error: -store must be postgres or bigquery")
	}
	if err != nil {
		log.Fatal().Err(err).Str("store", *store).Msg("Failed to connect")
	}
	defer m.Close()

	applied, err := run(ctx, log, m, dir, replacements, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}

// run applies every pending migration in dir and returns how many ran.
func run(ctx context.Context, log zerolog.Logger, m migrator, dir string, replacements map[string]string, appliedBy string) (int, error) {
	if err := m.EnsureSchemaMigrations(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := readMigrations(log, dir, replacements)
	if err != nil {
		return 0, fmt.Errorf("reading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	appliedMigrations, err := m.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	todo, err := pending(migrations, appliedMigrations)
	if err != nil {
		return 0, err
	}

	for _, migration := range todo {
		log.Info().Msgf("  [RUN]  %04d_%s", migration.Version, migration.Name)

		if err := m.Apply(ctx, migration, appliedBy); err != nil {
			return 0, fmt.Errorf("applying %04d_%s: %w", migration.Version, migration.Name, err)
		}

		log.Info().Msgf("  [OK]   %04d_%s", migration.Version, migration.Name)
	}

	return len(todo), nil
}

// pending returns the migrations not yet applied, in version order. An
// applied migration whose file has since changed is an error.
func pending(migrations []Migration, applied []AppliedMigration) ([]Migration, error) {
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	var todo []Migration
	for _, migration := range migrations {
		am, ok := appliedByVersion[migration.Version]
		if !ok {
			todo = append(todo, migration)
			continue
		}
		if am.Checksum != "" && am.Checksum != migration.Checksum {
			return nil, fmt.Errorf("migration %04d_%s was modified after being applied (checksum %s, file %s)",
				migration.Version, migration.Name, am.Checksum, migration.Checksum)
		}
	}
	return todo, nil
}

// readMigrations reads all migration files from dir, sorted by version.
// Placeholders are replaced after the checksum is taken, so the checksum
// tracks the migration itself and not the project it is applied to.
func readMigrations(log zerolog.Logger, dir string, replacements map[string]string) ([]Migration, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from the repository root when run from cmd/migrate
		alt := filepath.Join("..", "..", dir)
		if _, err := os.Stat(alt); err != nil {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
		dir = alt
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, other, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		for placeholder, value := range replacements {
			sql = strings.ReplaceAll(sql, placeholder, value)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}
