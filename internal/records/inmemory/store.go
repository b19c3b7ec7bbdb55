package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/records"
)

type expenseEntry struct {
	expense domain.Expense
	deleted bool
	voided  bool
}

type movementEntry struct {
	movement domain.CashMovement
	voidedAt time.Time
}

func (e *movementEntry) live() bool {
	return e.voidedAt.IsZero()
}

// Store is an in-memory implementation of records.Store.
// Cash movements live in an arena keyed by id; voiding stamps the entry
// instead of removing it. Safe for concurrent use.
// Data is lost on restart - use the postgres or bigquery store for persistence.
type Store struct {
	mu        sync.RWMutex
	income    map[records.Kind][]domain.IncomeRecord
	expenses  []expenseEntry
	movements map[string]*movementEntry
	sessions  map[civil.Date]domain.RegisterSession
}

// NewStore creates an empty in-memory record store.
func NewStore() *Store {
	return &Store{
		income:    make(map[records.Kind][]domain.IncomeRecord),
		movements: make(map[string]*movementEntry),
		sessions:  make(map[civil.Date]domain.RegisterSession),
	}
}

// AddIncome stores an income record under an income kind.
func (s *Store) AddIncome(kind records.Kind, rec domain.IncomeRecord) error {
	switch kind {
	case records.KindTuitionPayment, records.KindQuickPayment, records.KindSale:
	default:
		return fmt.Errorf("AddIncome: %q is not an income kind", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.income[kind] = append(s.income[kind], rec)
	return nil
}

// AddExpense stores an expense together with its deletion and void flags.
func (s *Store) AddExpense(e domain.Expense, deleted, voided bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Category != nil {
		c := *e.Category
		e.Category = &c
	}
	s.expenses = append(s.expenses, expenseEntry{expense: e, deleted: deleted, voided: voided})
}

// PutRegisterSession stores the session for its date. A second session for
// the same date is rejected.
func (s *Store) PutRegisterSession(session domain.RegisterSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.RegisterDate]; ok && existing.ID != session.ID {
		return fmt.Errorf("PutRegisterSession: a register session already exists for %s", session.RegisterDate)
	}
	s.sessions[session.RegisterDate] = session
	return nil
}

// ListIncome implements records.Reader.
func (s *Store) ListIncome(ctx context.Context, kind records.Kind, day civil.Date) ([]domain.IncomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.income[kind]
	if !ok {
		switch kind {
		case records.KindTuitionPayment, records.KindQuickPayment, records.KindSale:
			return []domain.IncomeRecord{}, nil
		}
		return nil, fmt.Errorf("ListIncome: %q is not an income kind", kind)
	}

	result := []domain.IncomeRecord{}
	for _, r := range rows {
		if r.OccurredOn == day {
			result = append(result, r)
		}
	}
	return result, nil
}

// ListExpenses implements records.Reader.
func (s *Store) ListExpenses(ctx context.Context, window domain.Window, filter records.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Expense{}
	for _, e := range s.expenses {
		if filter.ExcludeDeleted && e.deleted {
			continue
		}
		if filter.ExcludeVoided && e.voided {
			continue
		}
		if !window.Contains(e.expense.OccurredAt) {
			continue
		}

		// Copy so callers cannot reach the stored category
		exp := e.expense
		if exp.Category != nil {
			c := *exp.Category
			exp.Category = &c
		}
		result = append(result, exp)
	}
	return result, nil
}

// ListMovements implements records.Reader. Results are newest first.
func (s *Store) ListMovements(ctx context.Context, filter records.MovementFilter) ([]domain.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.CashMovement{}
	for _, e := range s.movements {
		if !e.live() {
			continue
		}
		if filter.RegisterID != "" && e.movement.RegisterID != filter.RegisterID {
			continue
		}
		if filter.Window != nil && !filter.Window.Contains(e.movement.MovementAt) {
			continue
		}
		result = append(result, e.movement)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].MovementAt.Equal(result[j].MovementAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].MovementAt.After(result[j].MovementAt)
	})
	return result, nil
}

// FindRegisterSession implements records.Reader.
func (s *Store) FindRegisterSession(ctx context.Context, day civil.Date) (*domain.RegisterSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[day]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// InsertMovement implements records.MovementWriter.
func (s *Store) InsertMovement(ctx context.Context, m domain.CashMovement) error {
	if m.ID == "" {
		return fmt.Errorf("InsertMovement: movement ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.movements[m.ID]; exists {
		return fmt.Errorf("InsertMovement: duplicate movement ID %s", m.ID)
	}
	s.movements[m.ID] = &movementEntry{movement: m}
	return nil
}

// TombstoneMovement implements records.MovementWriter.
func (s *Store) TombstoneMovement(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.movements[id]
	if !ok || !entry.live() {
		return records.MovementNotFound(id)
	}
	if at.IsZero() {
		at = time.Now()
	}
	entry.voidedAt = at
	return nil
}

// Ensure Store implements records.Store interface.
var _ records.Store = (*Store)(nil)
