package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"github.com/google/uuid"
)

// Clock returns the current time.
type Clock func() time.Time

// Ledger records cash movements against register sessions and derives their
// totals. It keeps no state of its own: the store is the only source of
// truth, and totals are always folded from the live movement list.
type Ledger struct {
	store records.Store
	now   Clock
	newID func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to timestamp new movements.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.now = c }
}

// WithIDGenerator sets the generator for movement identifiers.
func WithIDGenerator(f func() string) Option {
	return func(l *Ledger) { l.newID = f }
}

// New creates a ledger over the given store.
func New(store records.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListMovements returns the live movements of a register, newest first.
// An empty register ID means no register is open and yields an empty list.
func (l *Ledger) ListMovements(ctx context.Context, registerID string) ([]domain.CashMovement, error) {
	if registerID == "" {
		return []domain.CashMovement{}, nil
	}

	movements, err := l.store.ListMovements(ctx, records.MovementFilter{RegisterID: registerID})
	if err != nil {
		return nil, fmt.Errorf("ListMovements: %w", err)
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].MovementAt.After(movements[j].MovementAt)
	})
	return movements, nil
}

// RecordMovement validates and appends a movement. The returned movement is
// visible to the next ListMovements call.
func (l *Ledger) RecordMovement(ctx context.Context, registerID string, typ domain.MovementType, amount domain.Money, details domain.MovementDetails) (domain.CashMovement, error) {
	if err := validate(registerID, typ, amount); err != nil {
		return domain.CashMovement{}, err
	}

	m := domain.CashMovement{
		ID:              l.newID(),
		RegisterID:      registerID,
		Type:            typ,
		Amount:          amount,
		MovementAt:      l.now(),
		MovementDetails: details,
	}
	if err := l.store.InsertMovement(ctx, m); err != nil {
		return domain.CashMovement{}, fmt.Errorf("RecordMovement: %w", err)
	}

	log := logger.Component(logger.FromContext(ctx), "ledger")
	log.Info().
		Str("movement_id", m.ID).
		Str("register_id", registerID).
		Str("type", string(typ)).
		Str("amount", domain.FormatMoney(amount)).
		Msg("Cash movement recorded")

	return m, nil
}

func validate(registerID string, typ domain.MovementType, amount domain.Money) error {
	if registerID == "" {
		return &domain.ValidationError{Field: "register_id", Reason: "no open register"}
	}
	if !typ.Valid() {
		return &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unrecognized movement type %q", typ)}
	}
	if !amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// VoidMovement tombstones a live movement. Voiding an unknown or already
// voided movement fails with a *domain.NotFoundError.
func (l *Ledger) VoidMovement(ctx context.Context, id string) error {
	if id == "" {
		return records.MovementNotFound(id)
	}
	if err := l.store.TombstoneMovement(ctx, id, l.now()); err != nil {
		return fmt.Errorf("VoidMovement: %w", err)
	}

	log := logger.Component(logger.FromContext(ctx), "ledger")
	log.Info().Str("movement_id", id).Msg("Cash movement voided")
	return nil
}

// Totals recomputes the register's movement totals from its live movements.
func (l *Ledger) Totals(ctx context.Context, registerID string) (domain.MovementTotals, error) {
	movements, err := l.ListMovements(ctx, registerID)
	if err != nil {
		return domain.MovementTotals{}, fmt.Errorf("Totals: %w", err)
	}
	return domain.SummarizeMovements(movements), nil
}
