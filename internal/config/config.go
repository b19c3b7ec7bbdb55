package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Record store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBigQuery = "bigquery"
)

const (
	defaultPort       = "8080"
	defaultTimezone   = "America/Argentina/Buenos_Aires"
	defaultBQDataset  = "academy"
	defaultJobWorkers = 2
	defaultDayCloseAt = "23:30"
)

// Config holds the process configuration read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Timezone string
	Location *time.Location

	RecordStore string
	DatabaseURL string
	BQProjectID string
	BQDataset   string

	ArchiveBucket string

	NotionToken      string
	NotionClosingsDB string

	JobWorkers int
	DayCloseAt string // HH:MM in the business time zone
}

// NotionEnabled reports whether day-close summaries are published to Notion.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionClosingsDB != ""
}

// ArchiveEnabled reports whether day-close snapshots are stored in GCS.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// Load reads an optional .env file from the working directory, then the
// environment. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: reading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the shape of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:             get("PORT", defaultPort),
		LogLevel:         get("LOG_LEVEL", "info"),
		LogFormat:        get("LOG_FORMAT", "console"),
		Timezone:         get("BUSINESS_TIMEZONE", defaultTimezone),
		RecordStore:      strings.ToLower(get("RECORD_STORE", StoreMemory)),
		DatabaseURL:      get("DATABASE_URL", ""),
		BQProjectID:      get("BQ_PROJECT_ID", ""),
		BQDataset:        get("BQ_DATASET", defaultBQDataset),
		ArchiveBucket:    get("ARCHIVE_BUCKET", ""),
		NotionToken:      get("NOTION_TOKEN", ""),
		NotionClosingsDB: get("NOTION_CLOSINGS_DB_ID", ""),
		JobWorkers:       defaultJobWorkers,
		DayCloseAt:       get("DAY_CLOSE_AT", defaultDayCloseAt),
	}

	if raw := get("JOB_WORKERS", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: JOB_WORKERS must be a positive integer, got %q", raw)
		}
		cfg.JobWorkers = n
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: BUSINESS_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RecordStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when RECORD_STORE=postgres")
		}
	case StoreBigQuery:
		if c.BQProjectID == "" {
			return fmt.Errorf("config: BQ_PROJECT_ID is required when RECORD_STORE=bigquery")
		}
	default:
		return fmt.Errorf("config: unknown RECORD_STORE %q (want memory, postgres or bigquery)", c.RecordStore)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q (want console or json)", c.LogFormat)
	}

	if (c.NotionToken == "") != (c.NotionClosingsDB == "") {
		return fmt.Errorf("config: NOTION_TOKEN and NOTION_CLOSINGS_DB_ID must be set together")
	}

	if _, err := time.Parse("15:04", c.DayCloseAt); err != nil {
		return fmt.Errorf("config: DAY_CLOSE_AT %q is not HH:MM", c.DayCloseAt)
	}
	return nil
}
