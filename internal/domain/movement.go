package domain

import (
	"time"
)

// MovementType is the kind of manual cash drawer adjustment.
type MovementType string

const (
	// MovementDeposit moves cash from the drawer into the bank.
	MovementDeposit MovementType = "deposit"
	// MovementWithdrawal moves money from the bank into the drawer.
	MovementWithdrawal MovementType = "withdrawal"
	// MovementOwnerLoan is cash put into the drawer by the owner.
	MovementOwnerLoan MovementType = "owner_loan"
	// MovementOwnerReimbursement is cash taken out of the drawer to repay the owner.
	MovementOwnerReimbursement MovementType = "owner_reimbursement"
)

// MovementTypes lists every recognized movement type.
var MovementTypes = []MovementType{
	MovementDeposit,
	MovementWithdrawal,
	MovementOwnerLoan,
	MovementOwnerReimbursement,
}

// Valid reports whether t is one of the recognized movement types.
func (t MovementType) Valid() bool {
	switch t {
	case MovementDeposit, MovementWithdrawal, MovementOwnerLoan, MovementOwnerReimbursement:
		return true
	}
	return false
}

// CashEffect returns the signed change to cash-in-hand caused by a movement
// of this type and amount.
func (t MovementType) CashEffect(amount Money) Money {
	switch t {
	case MovementWithdrawal, MovementOwnerLoan:
		return amount
	case MovementDeposit, MovementOwnerReimbursement:
		return amount.Neg()
	}
	return Zero
}

// MovementDetails is the optional metadata attached to a movement.
type MovementDetails struct {
	Bank        string `json:"bank,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
	Responsible string `json:"responsible,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CashMovement is a live movement against a register session. Amount and
// Type never change once recorded; the only transition is being voided,
// after which stores stop returning it.
type CashMovement struct {
	ID         string       `json:"id"`
	RegisterID string       `json:"register_id"`
	Type       MovementType `json:"type"`
	Amount     Money        `json:"amount"`
	MovementAt time.Time    `json:"movement_at"`
	MovementDetails
}

// MovementTotals are derived from a set of live movements.
type MovementTotals struct {
	DepositsTotal Money `json:"deposits_total"`
	CashInTotal   Money `json:"cash_in_total"`
	CashOutTotal  Money `json:"cash_out_total"`
	NetEffect     Money `json:"net_effect"`
	Count         int   `json:"count"`
}

// SummarizeMovements folds the given live movements into totals:
//
//	depositsTotal = Σ deposit
//	cashInTotal   = Σ withdrawal + owner_loan
//	cashOutTotal  = Σ owner_reimbursement
//	netEffect     = cashInTotal − depositsTotal − cashOutTotal
func SummarizeMovements(movements []CashMovement) MovementTotals {
	totals := MovementTotals{
		DepositsTotal: Zero,
		CashInTotal:   Zero,
		CashOutTotal:  Zero,
	}
	for _, m := range movements {
		switch m.Type {
		case MovementDeposit:
			totals.DepositsTotal = totals.DepositsTotal.Add(m.Amount)
		case MovementWithdrawal, MovementOwnerLoan:
			totals.CashInTotal = totals.CashInTotal.Add(m.Amount)
		case MovementOwnerReimbursement:
			totals.CashOutTotal = totals.CashOutTotal.Add(m.Amount)
		default:
			continue
		}
		totals.Count++
	}
	totals.NetEffect = totals.CashInTotal.Sub(totals.DepositsTotal).Sub(totals.CashOutTotal)
	return totals
}
