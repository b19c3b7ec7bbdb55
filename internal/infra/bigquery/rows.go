package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
)

// IncomeRow is the shared shape of tuition_payments, quick_payments and
// sales once their columns are aliased in the query.
type IncomeRow struct {
	ID            string              `bigquery:"id"`             // REQUIRED
	Amount        *big.Rat            `bigquery:"amount"`         // REQUIRED NUMERIC
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	PaymentDate   civil.Date          `bigquery:"payment_date"`   // REQUIRED
}

// ExpenseRow is one expenses row joined with its category.
type ExpenseRow struct {
	ID            string              `bigquery:"id"`
	Amount        *big.Rat            `bigquery:"amount"`
	PaymentMethod bigquery.NullString `bigquery:"payment_method"`
	ExpenseDate   time.Time           `bigquery:"expense_date"` // TIMESTAMP
	CategoryName  bigquery.NullString `bigquery:"category_name"`
	CategoryColor bigquery.NullString `bigquery:"category_color"`
}

// MovementRow is one live cash_movements row.
type MovementRow struct {
	ID             string              `bigquery:"id"`
	CashRegisterID string              `bigquery:"cash_register_id"`
	Type           string              `bigquery:"type"`
	Amount         *big.Rat            `bigquery:"amount"`
	MovementDate   time.Time           `bigquery:"movement_date"`
	Bank           bigquery.NullString `bigquery:"bank"`
	ReceiptNumber  bigquery.NullString `bigquery:"receipt_number"`
	Responsible    bigquery.NullString `bigquery:"responsible"`
	Notes          bigquery.NullString `bigquery:"notes"`
}

// RegisterRow is one cash_registers row.
type RegisterRow struct {
	ID            string     `bigquery:"id"`
	RegisterDate  civil.Date `bigquery:"register_date"`
	Status        string     `bigquery:"status"`
	OpeningAmount *big.Rat   `bigquery:"opening_amount"`
}

// ToDomain converts the row into a domain income record.
func (r *IncomeRow) ToDomain() (domain.IncomeRecord, error) {
	amount, err := domain.MoneyFromRat(r.Amount)
	if err != nil {
		return domain.IncomeRecord{}, fmt.Errorf("income %s: amount: %w", r.ID, err)
	}
	return domain.IncomeRecord{
		ID:         r.ID,
		Amount:     amount,
		Method:     r.PaymentMethod.StringVal,
		OccurredOn: r.PaymentDate,
	}, nil
}

// ToDomain converts the row into a domain expense. A row without a
// category name has no category.
func (r *ExpenseRow) ToDomain() (domain.Expense, error) {
	amount, err := domain.MoneyFromRat(r.Amount)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("expense %s: amount: %w", r.ID, err)
	}
	e := domain.Expense{
		ID:         r.ID,
		Amount:     amount,
		Method:     r.PaymentMethod.StringVal,
		OccurredAt: r.ExpenseDate,
	}
	if r.CategoryName.Valid {
		e.Category = &domain.Category{Name: r.CategoryName.StringVal, Color: r.CategoryColor.StringVal}
	}
	return e, nil
}

// ToDomain converts the row into a domain cash movement.
func (r *MovementRow) ToDomain() (domain.CashMovement, error) {
	amount, err := domain.MoneyFromRat(r.Amount)
	if err != nil {
		return domain.CashMovement{}, fmt.Errorf("movement %s: amount: %w", r.ID, err)
	}
	return domain.CashMovement{
		ID:         r.ID,
		RegisterID: r.CashRegisterID,
		Type:       domain.MovementType(r.Type),
		Amount:     amount,
		MovementAt: r.MovementDate,
		MovementDetails: domain.MovementDetails{
			Bank:        r.Bank.StringVal,
			Receipt:     r.ReceiptNumber.StringVal,
			Responsible: r.Responsible.StringVal,
			Notes:       r.Notes.StringVal,
		},
	}, nil
}

// ToDomain converts the row into a domain register session.
func (r *RegisterRow) ToDomain() (*domain.RegisterSession, error) {
	opening, err := domain.MoneyFromRat(r.OpeningAmount)
	if err != nil {
		return nil, fmt.Errorf("register %s: opening amount: %w", r.ID, err)
	}
	return &domain.RegisterSession{
		ID:            r.ID,
		RegisterDate:  r.RegisterDate,
		Status:        domain.RegisterStatus(r.Status),
		OpeningAmount: opening,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
