package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
)

// Dataset identifies the project and dataset holding the academy tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backquoted name of a table.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// Store is the records.Store backed by BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	ds     Dataset
}

// NewStore creates a Store with its own BigQuery client.
func NewStore(ctx context.Context, ds Dataset) (*Store, error) {
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, ds), nil
}

// NewStoreWithClient creates a Store that uses an existing client.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ListIncome delegates to ListIncomeWithClient with the shared client.
func (s *Store) ListIncome(ctx context.Context, kind records.Kind, day civil.Date) ([]domain.IncomeRecord, error) {
	return ListIncomeWithClient(ctx, s.client, s.ds, kind, day)
}

// ListExpenses delegates to ListExpensesWithClient with the shared client.
func (s *Store) ListExpenses(ctx context.Context, window domain.Window, filter records.ExpenseFilter) ([]domain.Expense, error) {
	return ListExpensesWithClient(ctx, s.client, s.ds, window, filter)
}

// ListMovements delegates to ListMovementsWithClient with the shared client.
func (s *Store) ListMovements(ctx context.Context, filter records.MovementFilter) ([]domain.CashMovement, error) {
	return ListMovementsWithClient(ctx, s.client, s.ds, filter)
}

// FindRegisterSession delegates to FindRegisterSessionWithClient with the shared client.
func (s *Store) FindRegisterSession(ctx context.Context, day civil.Date) (*domain.RegisterSession, error) {
	return FindRegisterSessionWithClient(ctx, s.client, s.ds, day)
}

// InsertMovement delegates to InsertMovementWithClient with the shared client.
func (s *Store) InsertMovement(ctx context.Context, m domain.CashMovement) error {
	return InsertMovementWithClient(ctx, s.client, s.ds, m)
}

// TombstoneMovement delegates to TombstoneMovementWithClient with the shared client.
func (s *Store) TombstoneMovement(ctx context.Context, id string, at time.Time) error {
	return TombstoneMovementWithClient(ctx, s.client, s.ds, id, at)
}

// runDML runs a DML statement, waits for it and returns the number of
// affected rows.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics == nil {
		return 0, nil
	}
	stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok {
		return 0, nil
	}
	return stats.NumDMLAffectedRows, nil
}

// Ensure Store implements records.Store interface.
var _ records.Store = (*Store)(nil)
