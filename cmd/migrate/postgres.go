package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type postgresMigrator struct {
	db *sql.DB
}

func newPostgresMigrator(ctx context.Context, dsn string) (*postgresMigrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("-database-url or DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &postgresMigrator{db: db}, nil
}

func (p *postgresMigrator) Close() error {
	return p.db.Close()
}

// EnsureSchemaMigrations creates the schema_migrations table if it doesn't exist
func (p *postgresMigrator) EnsureSchemaMigrations(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum   TEXT,
			applied_by TEXT
		)
	`)
	return err
}

// Applied retrieves the list of already applied migrations
func (p *postgresMigrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT version, name, applied_at, checksum, applied_by
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am                  AppliedMigration
			checksum, appliedBy sql.NullString
		)
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &checksum, &appliedBy); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		am.Checksum = checksum.String
		am.AppliedBy = appliedBy.String
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

// Apply runs the migration and records it in one transaction.
func (p *postgresMigrator) Apply(ctx context.Context, m Migration, appliedBy string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, checksum, applied_by) VALUES ($1, $2, $3, $4)`,
		m.Version, m.Name, m.Checksum, appliedBy,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}
