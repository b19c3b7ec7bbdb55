package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"google.golang.org/api/iterator"
)

const movementsTable = "cash_movements"

func movementQuery(ds Dataset, filter records.MovementFilter) (string, []bigquery.QueryParameter) {
	var (
		b      strings.Builder
		params []bigquery.QueryParameter
	)
	fmt.Fprintf(&b, `
		SELECT
			CAST(id AS STRING) AS id,
			CAST(cash_register_id AS STRING) AS cash_register_id,
			type,
			amount,
			movement_date,
			bank,
			receipt_number,
			responsible,
			notes
		FROM %s
		WHERE deleted_at IS NULL`, ds.Table(movementsTable))
	if filter.RegisterID != "" {
		b.WriteString(`
		  AND CAST(cash_register_id AS STRING) = @register_id`)
		params = append(params, bigquery.QueryParameter{Name: "register_id", Value: filter.RegisterID})
	}
	if filter.Window != nil {
		b.WriteString(`
		  AND movement_date >= @start_ts
		  AND movement_date <= @end_ts`)
		params = append(params,
			bigquery.QueryParameter{Name: "start_ts", Value: filter.Window.Start},
			bigquery.QueryParameter{Name: "end_ts", Value: filter.Window.End},
		)
	}
	b.WriteString(`
		ORDER BY movement_date DESC, id DESC
	`)
	return b.String(), params
}

// ListMovementsWithClient returns live movements newest first using the
// provided BigQuery client.
func ListMovementsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter records.MovementFilter) ([]domain.CashMovement, error) {
	query, params := movementQuery(ds, filter)
	q := client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMovements: query read: %w", err)
	}

	result := []domain.CashMovement{}
	for {
		var row MovementRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMovements: iter next: %w", err)
		}
		m, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListMovements: %w", err)
		}
		result = append(result, m)
	}

	return result, nil
}

// InsertMovementWithClient appends a movement with a DML INSERT so the row
// can be tombstoned right away.
func InsertMovementWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, m domain.CashMovement) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			id,
			cash_register_id,
			type,
			amount,
			movement_date,
			bank,
			receipt_number,
			responsible,
			notes,
			created_at
		)
		VALUES (
			@id,
			@cash_register_id,
			@type,
			@amount,
			@movement_date,
			@bank,
			@receipt_number,
			@responsible,
			@notes,
			@movement_date
		)
	`, ds.Table(movementsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: m.ID},
		{Name: "cash_register_id", Value: m.RegisterID},
		{Name: "type", Value: string(m.Type)},
		{Name: "amount", Value: m.Amount.Rat()},
		{Name: "movement_date", Value: m.MovementAt},
		{Name: "bank", Value: nullString(m.Bank)},
		{Name: "receipt_number", Value: nullString(m.Receipt)},
		{Name: "responsible", Value: nullString(m.Responsible)},
		{Name: "notes", Value: nullString(m.Notes)},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertMovement: %w", err)
	}
	return nil
}

// TombstoneMovementWithClient voids a live movement. The conditional UPDATE
// affects no row when the movement is absent or already voided.
func TombstoneMovementWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string, at time.Time) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = @deleted_at
		WHERE CAST(id AS STRING) = @id
		  AND deleted_at IS NULL
	`, ds.Table(movementsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "deleted_at", Value: at},
		{Name: "id", Value: id},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("TombstoneMovement: %w", err)
	}
	if n == 0 {
		return records.MovementNotFound(id)
	}
	return nil
}
