package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

type bigqueryMigrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

func newBigQueryMigrator(ctx context.Context, projectID, datasetID string) (*bigqueryMigrator, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return &bigqueryMigrator{client: client, projectID: projectID, datasetID: datasetID}, nil
}

func (b *bigqueryMigrator) Close() error {
	return b.client.Close()
}

func (b *bigqueryMigrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", b.projectID, b.datasetID)
}

// EnsureSchemaMigrations creates the schema_migrations table if it doesn't exist
func (b *bigqueryMigrator) EnsureSchemaMigrations(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, b.table())

	return b.exec(ctx, b.client.Query(sql))
}

// Applied retrieves the list of already applied migrations
func (b *bigqueryMigrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, b.table())

	it, err := b.client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// Apply runs the migration script, then records it. BigQuery has no
// transactional DDL, so a failure between the two leaves the migration
// applied but unrecorded; every shipped script uses IF NOT EXISTS.
func (b *bigqueryMigrator) Apply(ctx context.Context, m Migration, appliedBy string) error {
	if err := b.exec(ctx, b.client.Query(m.SQL)); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	q := b.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, b.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}

	if err := b.exec(ctx, q); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return nil
}

func (b *bigqueryMigrator) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
