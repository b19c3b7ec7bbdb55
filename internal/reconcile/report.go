package reconcile

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
)

const (
	// UncategorizedName labels expenses without a category.
	UncategorizedName = "Uncategorized"
	// FallbackColor is used when a category carries no color.
	FallbackColor = "#9CA3AF"
)

// MethodTotals splits an amount across the normalized payment methods.
// Unmapped holds labels that had no normalization row.
type MethodTotals struct {
	Cash     domain.Money `json:"cash"`
	Transfer domain.Money `json:"transfer"`
	Card     domain.Money `json:"card"`
	Unmapped domain.Money `json:"unmapped"`
}

func newMethodTotals() MethodTotals {
	return MethodTotals{
		Cash:     domain.Zero,
		Transfer: domain.Zero,
		Card:     domain.Zero,
		Unmapped: domain.Zero,
	}
}

func (m *MethodTotals) add(method domain.PaymentMethod, amount domain.Money) {
	switch method {
	case domain.MethodCash:
		m.Cash = m.Cash.Add(amount)
	case domain.MethodTransfer:
		m.Transfer = m.Transfer.Add(amount)
	case domain.MethodCard:
		m.Card = m.Card.Add(amount)
	default:
		m.Unmapped = m.Unmapped.Add(amount)
	}
}

func (m *MethodTotals) merge(other MethodTotals) {
	m.Cash = m.Cash.Add(other.Cash)
	m.Transfer = m.Transfer.Add(other.Transfer)
	m.Card = m.Card.Add(other.Card)
	m.Unmapped = m.Unmapped.Add(other.Unmapped)
}

// Sum returns the total across every method, unmapped included.
func (m MethodTotals) Sum() domain.Money {
	return m.Cash.Add(m.Transfer).Add(m.Card).Add(m.Unmapped)
}

// SourceTotals summarizes one income source.
type SourceTotals struct {
	Source   domain.Origin `json:"source"`
	Total    domain.Money  `json:"total"`
	Count    int           `json:"count"`
	ByMethod MethodTotals  `json:"by_method"`
}

// CategoryTotals summarizes the expenses of one category.
type CategoryTotals struct {
	Name  string       `json:"name"`
	Color string       `json:"color"`
	Total domain.Money `json:"total"`
	Count int          `json:"count"`
}

// Report is the reconciled view of one business day. It is derived from
// source records on every request and never stored or updated in place.
type Report struct {
	Date civil.Date `json:"date"`

	RegisterOpened bool                  `json:"register_opened"`
	RegisterStatus domain.RegisterStatus `json:"register_status"`
	OpeningAmount  domain.Money          `json:"opening_amount"`

	IncomeByMethod MethodTotals   `json:"income_by_method"`
	IncomeBySource []SourceTotals `json:"income_by_source"`
	TotalIncome    domain.Money   `json:"total_income"`
	IncomeCount    int            `json:"income_count"`

	ExpensesByMethod   MethodTotals     `json:"expenses_by_method"`
	ExpensesByCategory []CategoryTotals `json:"expenses_by_category"`
	TotalExpenses      domain.Money     `json:"total_expenses"`
	ExpenseCount       int              `json:"expense_count"`

	Movements domain.MovementTotals `json:"movements"`

	CashInHand domain.Money `json:"cash_in_hand"`
	InBank     domain.Money `json:"in_bank"`
	NetBalance domain.Money `json:"net_balance"`

	Unmapped []domain.UnmappedMethodWarning `json:"unmapped"`
}

// Source returns the totals of one income source.
func (r *Report) Source(origin domain.Origin) SourceTotals {
	for _, s := range r.IncomeBySource {
		if s.Source == origin {
			return s
		}
	}
	return SourceTotals{Source: origin, Total: domain.Zero, ByMethod: newMethodTotals()}
}

// unmappedTally aggregates unmapped labels per origin and raw value.
type unmappedTally struct {
	index    map[domain.Origin]map[string]int
	warnings []domain.UnmappedMethodWarning
}

func (u *unmappedTally) add(origin domain.Origin, raw string, amount domain.Money) {
	if u.index == nil {
		u.index = make(map[domain.Origin]map[string]int)
	}
	if u.index[origin] == nil {
		u.index[origin] = make(map[string]int)
	}
	i, ok := u.index[origin][raw]
	if !ok {
		u.warnings = append(u.warnings, domain.UnmappedMethodWarning{Origin: origin, Raw: raw, Amount: domain.Zero})
		i = len(u.warnings) - 1
		u.index[origin][raw] = i
	}
	u.warnings[i].Count++
	u.warnings[i].Amount = u.warnings[i].Amount.Add(amount)
}

func (u *unmappedTally) list() []domain.UnmappedMethodWarning {
	out := make([]domain.UnmappedMethodWarning, len(u.warnings))
	copy(out, u.warnings)
	return out
}

// summarizeIncome folds the records of one income source.
func summarizeIncome(origin domain.Origin, rows []domain.IncomeRecord, unmapped *unmappedTally) SourceTotals {
	s := SourceTotals{Source: origin, Total: domain.Zero, ByMethod: newMethodTotals()}
	for _, r := range rows {
		method, ok := domain.NormalizeMethod(origin, r.Method)
		if !ok {
			unmapped.add(origin, r.Method, r.Amount)
		}
		s.ByMethod.add(method, r.Amount)
		s.Total = s.Total.Add(r.Amount)
		s.Count++
	}
	return s
}

// summarizeExpenses folds expenses per method and per category. Categories
// are sorted by total descending, then by name.
func summarizeExpenses(rows []domain.Expense, unmapped *unmappedTally) (MethodTotals, []CategoryTotals, domain.Money) {
	byMethod := newMethodTotals()
	total := domain.Zero
	index := make(map[string]int)
	var categories []CategoryTotals

	for _, e := range rows {
		method, ok := domain.NormalizeMethod(domain.OriginExpense, e.Method)
		if !ok {
			unmapped.add(domain.OriginExpense, e.Method, e.Amount)
		}
		byMethod.add(method, e.Amount)
		total = total.Add(e.Amount)

		name, color := UncategorizedName, ""
		if e.Category != nil {
			if e.Category.Name != "" {
				name = e.Category.Name
			}
			color = e.Category.Color
		}

		i, seen := index[name]
		if !seen {
			categories = append(categories, CategoryTotals{Name: name, Total: domain.Zero})
			i = len(categories) - 1
			index[name] = i
		}
		if categories[i].Color == "" {
			categories[i].Color = color
		}
		categories[i].Total = categories[i].Total.Add(e.Amount)
		categories[i].Count++
	}

	for i := range categories {
		if categories[i].Color == "" {
			categories[i].Color = FallbackColor
		}
	}
	sort.SliceStable(categories, func(i, j int) bool {
		if c := categories[i].Total.Cmp(categories[j].Total); c != 0 {
			return c > 0
		}
		return categories[i].Name < categories[j].Name
	})
	if categories == nil {
		categories = []CategoryTotals{}
	}

	return byMethod, categories, total
}
