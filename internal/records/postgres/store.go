package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
	_ "github.com/lib/pq"
)

// incomeTables maps income kinds to their table and column names.
var incomeTables = map[records.Kind]struct {
	table, amount, method, date string
}{
	records.KindTuitionPayment: {"tuition_payments", "amount", "payment_method", "payment_date"},
	records.KindQuickPayment:   {"quick_payments", "amount", "payment_method", "payment_date"},
	records.KindSale:           {"sales", "total_amount", "payment_method", "sale_date"},
}

// Store is a records.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres.Open: DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.Open: ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &Store{db: db}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListIncome implements records.Reader.
func (s *Store) ListIncome(ctx context.Context, kind records.Kind, day civil.Date) ([]domain.IncomeRecord, error) {
	query, err := incomeQuery(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, day.String())
	if err != nil {
		return nil, fmt.Errorf("ListIncome(%s): query: %w", kind, err)
	}
	defer rows.Close()

	result := []domain.IncomeRecord{}
	for rows.Next() {
		var (
			r      domain.IncomeRecord
			method sql.NullString
			date   time.Time
		)
		if err := rows.Scan(&r.ID, &r.Amount, &method, &date); err != nil {
			return nil, fmt.Errorf("ListIncome(%s): scan: %w", kind, err)
		}
		r.Method = method.String
		r.OccurredOn = civil.DateOf(date)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListIncome(%s): rows: %w", kind, err)
	}
	return result, nil
}

func incomeQuery(kind records.Kind) (string, error) {
	t, ok := incomeTables[kind]
	if !ok {
		return "", fmt.Errorf("ListIncome: %q is not an income kind", kind)
	}
	return fmt.Sprintf(
		`SELECT id::text, %s, %s, %s FROM %s WHERE %s = $1 ORDER BY created_at`,
		t.amount, t.method, t.date, t.table, t.date,
	), nil
}

// ListExpenses implements records.Reader.
func (s *Store) ListExpenses(ctx context.Context, window domain.Window, filter records.ExpenseFilter) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, expenseQuery(filter), window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query: %w", err)
	}
	defer rows.Close()

	result := []domain.Expense{}
	for rows.Next() {
		var (
			e             domain.Expense
			method        sql.NullString
			categoryName  sql.NullString
			categoryColor sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Amount, &method, &e.OccurredAt, &categoryName, &categoryColor); err != nil {
			return nil, fmt.Errorf("ListExpenses: scan: %w", err)
		}
		e.Method = method.String
		if categoryName.Valid {
			e.Category = &domain.Category{Name: categoryName.String, Color: categoryColor.String}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListExpenses: rows: %w", err)
	}
	return result, nil
}

func expenseQuery(filter records.ExpenseFilter) string {
	var b strings.Builder
	b.WriteString(`SELECT e.id::text, e.amount, e.payment_method, e.expense_date, c.name, c.color
		FROM expenses e
		LEFT JOIN expense_categories c ON c.id = e.category_id
		WHERE e.expense_date >= $1 AND e.expense_date <= $2`)
	if filter.ExcludeDeleted {
		b.WriteString(` AND e.deleted_at IS NULL`)
	}
	if filter.ExcludeVoided {
		b.WriteString(` AND e.voided_at IS NULL`)
	}
	b.WriteString(` ORDER BY e.expense_date`)
	return b.String()
}

// ListMovements implements records.Reader. Results are newest first.
func (s *Store) ListMovements(ctx context.Context, filter records.MovementFilter) ([]domain.CashMovement, error) {
	query, args := movementQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListMovements: query: %w", err)
	}
	defer rows.Close()

	result := []domain.CashMovement{}
	for rows.Next() {
		var (
			m                                  domain.CashMovement
			typ                                string
			bank, receipt, responsible, notes sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.RegisterID, &typ, &m.Amount, &m.MovementAt, &bank, &receipt, &responsible, &notes); err != nil {
			return nil, fmt.Errorf("ListMovements: scan: %w", err)
		}
		m.Type = domain.MovementType(typ)
		m.Bank = bank.String
		m.Receipt = receipt.String
		m.Responsible = responsible.String
		m.Notes = notes.String
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMovements: rows: %w", err)
	}
	return result, nil
}

func movementQuery(filter records.MovementFilter) (string, []interface{}) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString(`SELECT id::text, cash_register_id::text, type, amount, movement_date, bank, receipt_number, responsible, notes
		FROM cash_movements
		WHERE deleted_at IS NULL`)
	if filter.RegisterID != "" {
		args = append(args, filter.RegisterID)
		fmt.Fprintf(&b, ` AND cash_register_id::text = $%d`, len(args))
	}
	if filter.Window != nil {
		args = append(args, filter.Window.Start, filter.Window.End)
		fmt.Fprintf(&b, ` AND movement_date >= $%d AND movement_date <= $%d`, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY movement_date DESC, id DESC`)
	return b.String(), args
}

// FindRegisterSession implements records.Reader.
func (s *Store) FindRegisterSession(ctx context.Context, day civil.Date) (*domain.RegisterSession, error) {
	query := `
		SELECT id::text, register_date, status, opening_amount
		FROM cash_registers
		WHERE register_date = $1
	`

	var (
		session domain.RegisterSession
		date    time.Time
		status  string
	)
	err := s.db.QueryRowContext(ctx, query, day.String()).Scan(&session.ID, &date, &status, &session.OpeningAmount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindRegisterSession: %w", err)
	}
	session.RegisterDate = civil.DateOf(date)
	session.Status = domain.RegisterStatus(status)
	return &session, nil
}

// InsertMovement implements records.MovementWriter.
func (s *Store) InsertMovement(ctx context.Context, m domain.CashMovement) error {
	query := `
		INSERT INTO cash_movements
			(id, cash_register_id, type, amount, movement_date, bank, receipt_number, responsible, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.RegisterID, string(m.Type), m.Amount, m.MovementAt,
		nullString(m.Bank), nullString(m.Receipt), nullString(m.Responsible), nullString(m.Notes),
	)
	if err != nil {
		return fmt.Errorf("InsertMovement: %w", err)
	}
	return nil
}

// TombstoneMovement implements records.MovementWriter. The conditional
// update makes a concurrent second void affect zero rows.
func (s *Store) TombstoneMovement(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cash_movements SET deleted_at = $1 WHERE id::text = $2 AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("TombstoneMovement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("TombstoneMovement: rows affected: %w", err)
	}
	if n == 0 {
		return records.MovementNotFound(id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure Store implements records.Store interface.
var _ records.Store = (*Store)(nil)
