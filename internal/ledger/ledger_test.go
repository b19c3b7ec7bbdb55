package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/records/inmemory"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var moneyCmp = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// fakeClock advances one second per call so movements get distinct times.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLedger() (*Ledger, *inmemory.Store) {
	store := inmemory.NewStore()
	clock := &fakeClock{t: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("mov-%03d", n)
	}
	return New(store, WithClock(clock.Now), WithIDGenerator(ids)), store
}

func money(s string) domain.Money {
	return decimal.RequireFromString(s)
}

func TestListMovements_NoRegister(t *testing.T) {
	l, _ := newTestLedger()

	got, err := l.ListMovements(context.Background(), "")
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRecordMovement_Validation(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	tests := []struct {
		name       string
		registerID string
		typ        domain.MovementType
		amount     string
		field      string
	}{
		{"missing register", "", domain.MovementDeposit, "10", "register_id"},
		{"unknown type", "reg-1", domain.MovementType("refund"), "10", "type"},
		{"zero amount", "reg-1", domain.MovementDeposit, "0", "amount"},
		{"negative amount", "reg-1", domain.MovementOwnerLoan, "-5.00", "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.RecordMovement(ctx, tt.registerID, tt.typ, money(tt.amount), domain.MovementDetails{})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("expected field %q, got %+v", tt.field, ve)
			}
		})
	}

	got, _ := l.ListMovements(ctx, "reg-1")
	if len(got) != 0 {
		t.Errorf("rejected movements must not be stored, found %d", len(got))
	}
}

func TestRecordMovement_ImmediatelyVisible(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	first, err := l.RecordMovement(ctx, "reg-1", domain.MovementDeposit, money("40.00"), domain.MovementDetails{Bank: "Galicia", Receipt: "R-1"})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	second, err := l.RecordMovement(ctx, "reg-1", domain.MovementOwnerLoan, money("25.00"), domain.MovementDetails{Responsible: "Laura"})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	if first.ID == "" || first.MovementAt.IsZero() {
		t.Errorf("expected server-assigned ID and timestamp, got %+v", first)
	}

	got, err := l.ListMovements(ctx, "reg-1")
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("expected newest first, got %s then %s", got[0].ID, got[1].ID)
	}
	if got[1].Bank != "Galicia" || got[1].Receipt != "R-1" {
		t.Errorf("metadata not preserved: %+v", got[1].MovementDetails)
	}
}

func TestVoidMovement(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	m, _ := l.RecordMovement(ctx, "reg-1", domain.MovementWithdrawal, money("15.00"), domain.MovementDetails{})

	if err := l.VoidMovement(ctx, m.ID); err != nil {
		t.Fatalf("VoidMovement: %v", err)
	}

	err := l.VoidMovement(ctx, m.ID)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("second void: expected NotFoundError, got %v", err)
	}
	if nf.ID != m.ID {
		t.Errorf("NotFoundError.ID = %q, want %q", nf.ID, m.ID)
	}

	if err := l.VoidMovement(ctx, "does-not-exist"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if err := l.VoidMovement(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("empty id: expected ErrNotFound, got %v", err)
	}

	totals, _ := l.Totals(ctx, "reg-1")
	if totals.Count != 0 || !totals.CashInTotal.IsZero() {
		t.Errorf("voided movement still counted: %+v", totals)
	}
}

func TestRecordAndVoid_LogWithContextLogger(t *testing.T) {
	l, _ := newTestLedger()
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	m, err := l.RecordMovement(ctx, "reg-1", domain.MovementDeposit, money("40.00"), domain.MovementDetails{})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	if err := l.VoidMovement(ctx, m.ID); err != nil {
		t.Fatalf("VoidMovement: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		`"message":"Cash movement recorded"`,
		`"message":"Cash movement voided"`,
		`"component":"ledger"`,
		`"movement_id":"` + m.ID + `"`,
		`"amount":"40.00"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %s:\n%s", want, output)
		}
	}
}

func TestTotals_LoanThenVoidRestoresTotals(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	_, _ = l.RecordMovement(ctx, "reg-1", domain.MovementDeposit, money("40.00"), domain.MovementDetails{})
	before, err := l.Totals(ctx, "reg-1")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}

	loan, _ := l.RecordMovement(ctx, "reg-1", domain.MovementOwnerLoan, money("25.00"), domain.MovementDetails{})
	during, _ := l.Totals(ctx, "reg-1")
	if !during.NetEffect.Sub(before.NetEffect).Equal(money("25.00")) {
		t.Errorf("owner loan should raise net effect by 25.00: before %s, during %s", before.NetEffect, during.NetEffect)
	}

	if err := l.VoidMovement(ctx, loan.ID); err != nil {
		t.Fatalf("VoidMovement: %v", err)
	}
	after, _ := l.Totals(ctx, "reg-1")
	if diff := cmp.Diff(before, after, moneyCmp); diff != "" {
		t.Errorf("record+void should leave totals unchanged (-before +after):\n%s", diff)
	}
}

func TestTotals_EmptyLedger(t *testing.T) {
	l, _ := newTestLedger()

	totals, err := l.Totals(context.Background(), "reg-1")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	want := domain.SummarizeMovements(nil)
	if diff := cmp.Diff(want, totals, moneyCmp); diff != "" {
		t.Errorf("empty ledger totals mismatch (-want +got):\n%s", diff)
	}
}

// Recomputed totals must agree with counters maintained incrementally over
// any interleaving of record and void operations.
func TestTotals_AgreeWithIncrementalCounters(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var (
		deposits, cashIn, cashOut = decimal.Zero, decimal.Zero, decimal.Zero
		live                      []domain.CashMovement
	)
	apply := func(m domain.CashMovement, sign int64) {
		amount := m.Amount.Mul(decimal.NewFromInt(sign))
		switch m.Type {
		case domain.MovementDeposit:
			deposits = deposits.Add(amount)
		case domain.MovementWithdrawal, domain.MovementOwnerLoan:
			cashIn = cashIn.Add(amount)
		case domain.MovementOwnerReimbursement:
			cashOut = cashOut.Add(amount)
		}
	}

	for step := 0; step < 200; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			victim := live[i]
			if err := l.VoidMovement(ctx, victim.ID); err != nil {
				t.Fatalf("step %d: VoidMovement: %v", step, err)
			}
			apply(victim, -1)
			live = append(live[:i], live[i+1:]...)
		} else {
			typ := domain.MovementTypes[rng.Intn(len(domain.MovementTypes))]
			amount := decimal.New(int64(rng.Intn(50000)+1), -2)
			m, err := l.RecordMovement(ctx, "reg-1", typ, amount, domain.MovementDetails{})
			if err != nil {
				t.Fatalf("step %d: RecordMovement: %v", step, err)
			}
			apply(m, 1)
			live = append(live, m)
		}

		totals, err := l.Totals(ctx, "reg-1")
		if err != nil {
			t.Fatalf("step %d: Totals: %v", step, err)
		}
		if !totals.DepositsTotal.Equal(deposits) || !totals.CashInTotal.Equal(cashIn) || !totals.CashOutTotal.Equal(cashOut) {
			t.Fatalf("step %d: recomputed %+v disagrees with counters deposits=%s in=%s out=%s", step, totals, deposits, cashIn, cashOut)
		}
		if !totals.NetEffect.Equal(cashIn.Sub(deposits).Sub(cashOut)) {
			t.Fatalf("step %d: net effect %s", step, totals.NetEffect)
		}
		if totals.Count != len(live) {
			t.Fatalf("step %d: count %d, want %d", step, totals.Count, len(live))
		}
	}
}

func TestRecordMovement_AmountAndTypeImmutable(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	m, _ := l.RecordMovement(ctx, "reg-1", domain.MovementDeposit, money("40.00"), domain.MovementDetails{})

	// Mutating the returned value must not reach the stored record.
	m.Amount = money("1.00")
	m.Type = domain.MovementOwnerLoan

	got, _ := l.ListMovements(ctx, "reg-1")
	if len(got) != 1 || got[0].Type != domain.MovementDeposit || !got[0].Amount.Equal(money("40.00")) {
		t.Errorf("stored movement changed: %+v", got)
	}
}
