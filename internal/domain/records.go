package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// IncomeRecord is a tuition payment, quick payment or sale. Which of the
// three it is depends on the store it was read from.
type IncomeRecord struct {
	ID         string     `json:"id"`
	Amount     Money      `json:"amount"`
	Method     string     `json:"payment_method"` // raw label, see NormalizeMethod
	OccurredOn civil.Date `json:"occurred_on"`
}

// Category groups expenses in reports.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Expense is a live (neither deleted nor voided) expense record.
type Expense struct {
	ID         string    `json:"id"`
	Amount     Money     `json:"amount"`
	Method     string    `json:"payment_method"`
	OccurredAt time.Time `json:"occurred_at"`
	Category   *Category `json:"category,omitempty"`
}

// RegisterStatus is the state of a cash register session.
type RegisterStatus string

const (
	RegisterOpen   RegisterStatus = "open"
	RegisterClosed RegisterStatus = "closed"
	// RegisterNotOpened is reported for a date without a session.
	RegisterNotOpened RegisterStatus = "not_opened"
)

// RegisterSession is the cash drawer opened for one date. There is at most
// one session per date.
type RegisterSession struct {
	ID            string         `json:"id"`
	RegisterDate  civil.Date     `json:"register_date"`
	Status        RegisterStatus `json:"status"`
	OpeningAmount Money          `json:"opening_amount"`
}
