package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"google.golang.org/api/iterator"
)

// FindRegisterSessionWithClient returns the cash register session of day, or
// nil when the register was not opened, using the provided BigQuery client.
func FindRegisterSessionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, day civil.Date) (*domain.RegisterSession, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			CAST(id AS STRING) AS id,
			register_date,
			status,
			opening_amount
		FROM %s
		WHERE register_date = @day
		LIMIT 1
	`, ds.Table("cash_registers")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "day", Value: day},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindRegisterSession: query read: %w", err)
	}

	var row RegisterRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindRegisterSession: iter next: %w", err)
	}

	session, err := row.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("FindRegisterSession: %w", err)
	}
	return session, nil
}
