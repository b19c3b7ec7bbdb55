package domain

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var moneyCmp = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func mustMoney(t *testing.T, s string) Money {
	t.Helper()
	m, err := ParseMoney(s)
	if err != nil {
		t.Fatalf("ParseMoney(%q): %v", s, err)
	}
	return m
}

func TestSummarizeMovements(t *testing.T) {
	movements := []CashMovement{
		{ID: "1", Type: MovementDeposit, Amount: mustMoney(t, "40.00")},
		{ID: "2", Type: MovementWithdrawal, Amount: mustMoney(t, "10.50")},
		{ID: "3", Type: MovementOwnerLoan, Amount: mustMoney(t, "25.00")},
		{ID: "4", Type: MovementOwnerReimbursement, Amount: mustMoney(t, "5.25")},
		{ID: "5", Type: MovementDeposit, Amount: mustMoney(t, "0.10")},
	}

	got := SummarizeMovements(movements)
	want := MovementTotals{
		DepositsTotal: mustMoney(t, "40.10"),
		CashInTotal:   mustMoney(t, "35.50"),
		CashOutTotal:  mustMoney(t, "5.25"),
		NetEffect:     mustMoney(t, "-9.85"),
		Count:         5,
	}
	if diff := cmp.Diff(want, got, moneyCmp); diff != "" {
		t.Errorf("SummarizeMovements() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeMovements_Empty(t *testing.T) {
	got := SummarizeMovements(nil)
	if !got.NetEffect.IsZero() || !got.DepositsTotal.IsZero() || got.Count != 0 {
		t.Errorf("expected zero totals, got %+v", got)
	}
}

func TestSummarizeMovements_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var movements []CashMovement
	for i := 0; i < 50; i++ {
		movements = append(movements, CashMovement{
			ID:     fmt.Sprintf("m%d", i),
			Type:   MovementTypes[rng.Intn(len(MovementTypes))],
			Amount: decimal.New(int64(rng.Intn(100000)+1), -2),
		})
	}

	want := SummarizeMovements(movements)
	for round := 0; round < 20; round++ {
		shuffled := append([]CashMovement(nil), movements...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := SummarizeMovements(shuffled)
		if diff := cmp.Diff(want, got, moneyCmp); diff != "" {
			t.Fatalf("round %d: totals depend on order (-want +got):\n%s", round, diff)
		}
		if !got.NetEffect.Equal(got.CashInTotal.Sub(got.DepositsTotal).Sub(got.CashOutTotal)) {
			t.Fatalf("round %d: net effect %s does not match components", round, got.NetEffect)
		}
	}
}

func TestMovementType_CashEffect(t *testing.T) {
	amount := mustMoney(t, "12.34")
	tests := []struct {
		typ  MovementType
		want string
	}{
		{MovementDeposit, "-12.34"},
		{MovementWithdrawal, "12.34"},
		{MovementOwnerLoan, "12.34"},
		{MovementOwnerReimbursement, "-12.34"},
		{MovementType("transfer"), "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.CashEffect(amount); !got.Equal(mustMoney(t, tt.want)) {
				t.Errorf("CashEffect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMovementType_Valid(t *testing.T) {
	for _, typ := range MovementTypes {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	for _, typ := range []MovementType{"", "Deposit", "loan", "expense"} {
		if typ.Valid() {
			t.Errorf("%q should be invalid", typ)
		}
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	date := civil.Date{Year: 2024, Month: time.March, Day: 5}
	w := DayWindow(date, loc)

	if !w.Contains(time.Date(2024, 3, 5, 0, 0, 0, 0, loc)) {
		t.Error("window should include midnight")
	}
	if !w.Contains(time.Date(2024, 3, 5, 23, 59, 59, 999999999, loc)) {
		t.Error("window should include the last nanosecond of the day")
	}
	if w.Contains(time.Date(2024, 3, 6, 0, 0, 0, 0, loc)) {
		t.Error("window should exclude the next midnight")
	}
	// 02:30 UTC on the 6th is still the 5th in Buenos Aires (UTC-3).
	if !w.Contains(time.Date(2024, 3, 6, 2, 30, 0, 0, time.UTC)) {
		t.Error("window should be evaluated in business time")
	}
}

func TestErrors_Is(t *testing.T) {
	var err error = &ValidationError{Field: "amount", Reason: "must be positive"}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
	err = fmt.Errorf("wrapped: %w", &NotFoundError{Kind: "cash movement", ID: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped NotFoundError should match ErrNotFound")
	}
	cause := errors.New("connection reset")
	pd := &PartialDataError{Failures: []SourceFailure{{Source: "sales", Err: cause}}}
	if !errors.Is(pd, ErrPartialData) || !errors.Is(pd, cause) {
		t.Error("PartialDataError should match ErrPartialData and its causes")
	}
	if got := pd.Sources(); len(got) != 1 || got[0] != "sales" {
		t.Errorf("Sources() = %v", got)
	}
}

func TestMoneyFromRat(t *testing.T) {
	r, _ := new(big.Rat).SetString("1234.56")
	got, err := MoneyFromRat(r)
	if err != nil {
		t.Fatalf("MoneyFromRat: %v", err)
	}
	if FormatMoney(got) != "1234.56" {
		t.Errorf("got %s", FormatMoney(got))
	}
	if z, _ := MoneyFromRat(nil); !z.IsZero() {
		t.Errorf("nil rat should be zero, got %s", z)
	}
}
