package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"google.golang.org/api/iterator"
)

func expenseQuery(ds Dataset, filter records.ExpenseFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
		SELECT
			CAST(e.id AS STRING) AS id,
			e.amount,
			e.payment_method,
			e.expense_date,
			c.name AS category_name,
			c.color AS category_color
		FROM %s e
		LEFT JOIN %s c ON c.id = e.category_id
		WHERE e.expense_date >= @start_ts
		  AND e.expense_date <= @end_ts`, ds.Table("expenses"), ds.Table("expense_categories"))
	if filter.ExcludeDeleted {
		b.WriteString(`
		  AND e.deleted_at IS NULL`)
	}
	if filter.ExcludeVoided {
		b.WriteString(`
		  AND e.voided_at IS NULL`)
	}
	b.WriteString(`
		ORDER BY e.expense_date
	`)
	return b.String()
}

// ListExpensesWithClient returns the expenses inside window using the
// provided BigQuery client.
func ListExpensesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, window domain.Window, filter records.ExpenseFilter) ([]domain.Expense, error) {
	q := client.Query(expenseQuery(ds, filter))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_ts", Value: window.Start},
		{Name: "end_ts", Value: window.End},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query read: %w", err)
	}

	result := []domain.Expense{}
	for {
		var row ExpenseRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: iter next: %w", err)
		}
		e, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: %w", err)
		}
		result = append(result, e)
	}

	return result, nil
}
