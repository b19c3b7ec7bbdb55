package records

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
)

// Kind names a record set held by a store.
type Kind string

const (
	KindTuitionPayment      Kind = "tuition_payment"
	KindQuickPayment        Kind = "quick_payment"
	KindSale                Kind = "sale"
	KindExpense             Kind = "expense"
	KindCashMovement        Kind = "cash_movement"
	KindCashRegisterSession Kind = "cash_register_session"
)

// IncomeKind returns the record kind that holds income of the given origin.
func IncomeKind(origin domain.Origin) (Kind, error) {
	switch origin {
	case domain.OriginTuition:
		return KindTuitionPayment, nil
	case domain.OriginQuickPayment:
		return KindQuickPayment, nil
	case domain.OriginSale:
		return KindSale, nil
	}
	return "", fmt.Errorf("IncomeKind: no income kind for origin %q", origin)
}

// ExpenseFilter holds the exclusion predicates applied to expenses. Deleted
// and voided are independent of each other.
type ExpenseFilter struct {
	ExcludeDeleted bool
	ExcludeVoided  bool
}

// LiveExpenses excludes both deleted and voided expenses.
var LiveExpenses = ExpenseFilter{ExcludeDeleted: true, ExcludeVoided: true}

// MovementFilter selects live cash movements. Zero fields do not filter.
type MovementFilter struct {
	RegisterID string
	Window     *domain.Window
}

// Reader is the read side of the record store. Implementations translate
// store-specific field names into the domain types.
type Reader interface {
	// ListIncome returns income records of an income kind dated on day.
	ListIncome(ctx context.Context, kind Kind, day civil.Date) ([]domain.IncomeRecord, error)

	// ListExpenses returns expenses whose timestamp falls inside the window.
	ListExpenses(ctx context.Context, window domain.Window, filter ExpenseFilter) ([]domain.Expense, error)

	// ListMovements returns non-voided movements matching the filter.
	ListMovements(ctx context.Context, filter MovementFilter) ([]domain.CashMovement, error)

	// FindRegisterSession returns the session for day, or nil when the
	// register was not opened that day.
	FindRegisterSession(ctx context.Context, day civil.Date) (*domain.RegisterSession, error)
}

// MovementWriter is the append/tombstone surface for cash movements.
type MovementWriter interface {
	// InsertMovement appends a movement. The id must be unique.
	InsertMovement(ctx context.Context, m domain.CashMovement) error

	// TombstoneMovement voids a live movement. It returns a
	// *domain.NotFoundError when the id is absent or already voided.
	TombstoneMovement(ctx context.Context, id string, at time.Time) error
}

// Store combines both sides.
type Store interface {
	Reader
	MovementWriter
}

// MovementNotFound builds the error returned for unknown or voided movements.
func MovementNotFound(id string) error {
	return &domain.NotFoundError{Kind: "cash movement", ID: id}
}
