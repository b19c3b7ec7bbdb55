package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"google.golang.org/api/iterator"
)

// incomeTable describes where one income kind lives. Sales name their
// columns differently, so every query aliases them to IncomeRow's tags.
type incomeTable struct {
	name, amount, date string
}

var incomeTables = map[records.Kind]incomeTable{
	records.KindTuitionPayment: {"tuition_payments", "amount", "payment_date"},
	records.KindQuickPayment:   {"quick_payments", "amount", "payment_date"},
	records.KindSale:           {"sales", "total_amount", "sale_date"},
}

// incomeQuery builds the SELECT for one income kind.
func incomeQuery(ds Dataset, kind records.Kind) (string, error) {
	t, ok := incomeTables[kind]
	if !ok {
		return "", fmt.Errorf("%q is not an income kind", kind)
	}
	return fmt.Sprintf(`
		SELECT
			CAST(id AS STRING) AS id,
			%s AS amount,
			payment_method,
			%s AS payment_date
		FROM %s
		WHERE %s = @day
		ORDER BY created_at
	`, t.amount, t.date, ds.Table(t.name), t.date), nil
}

// ListIncomeWithClient returns the income records of kind dated on day
// using the provided BigQuery client.
func ListIncomeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, kind records.Kind, day civil.Date) ([]domain.IncomeRecord, error) {
	query, err := incomeQuery(ds, kind)
	if err != nil {
		return nil, fmt.Errorf("ListIncome: %w", err)
	}

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "day", Value: day},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListIncome(%s): query read: %w", kind, err)
	}

	result := []domain.IncomeRecord{}
	for {
		var row IncomeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListIncome(%s): iter next: %w", kind, err)
		}
		rec, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListIncome(%s): %w", kind, err)
		}
		result = append(result, rec)
	}

	return result, nil
}
