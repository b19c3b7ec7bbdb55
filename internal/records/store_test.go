package records

import (
	"testing"

	"github.com/dvloznov/academy-cashbook/internal/domain"
)

func TestIncomeKind(t *testing.T) {
	tests := []struct {
		origin  domain.Origin
		want    Kind
		wantErr bool
	}{
		{domain.OriginTuition, KindTuitionPayment, false},
		{domain.OriginQuickPayment, KindQuickPayment, false},
		{domain.OriginSale, KindSale, false},
		{domain.OriginExpense, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.origin), func(t *testing.T) {
			got, err := IncomeKind(tt.origin)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IncomeKind(%q) err = %v, wantErr %v", tt.origin, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IncomeKind(%q) = %q, want %q", tt.origin, got, tt.want)
			}
		})
	}

	for _, origin := range domain.IncomeOrigins {
		if _, err := IncomeKind(origin); err != nil {
			t.Errorf("income origin %q has no record kind: %v", origin, err)
		}
	}
}
