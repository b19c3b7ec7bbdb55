package reconcile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"golang.org/x/sync/errgroup"
)

// Source names used in PartialDataError failures.
const (
	SourceRegisterSession = string(records.KindCashRegisterSession)
	SourceTuition         = string(records.KindTuitionPayment)
	SourceQuickPayments   = string(records.KindQuickPayment)
	SourceSales           = string(records.KindSale)
	SourceExpenses        = string(records.KindExpense)
	SourceMovements       = string(records.KindCashMovement)
)

// Engine builds the reconciled report of a business day. It holds no
// mutable state, so one Engine serves concurrent requests for any dates.
type Engine struct {
	store records.Reader
	loc   *time.Location
}

// NewEngine creates an engine reading from store. Timestamps are bucketed
// into days using loc; nil means UTC.
func NewEngine(store records.Reader, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc}
}

// Report reconciles income, expenses and cash movements for date against
// the opening balance of that day's register. If any source cannot be read
// no report is produced and the error is a *domain.PartialDataError naming
// every failed source.
func (e *Engine) Report(ctx context.Context, date civil.Date) (*Report, error) {
	log := logger.FromContext(ctx)
	window := domain.DayWindow(date, e.loc)

	session, err := e.store.FindRegisterSession(ctx, date)
	if err != nil {
		log.Error().Err(err).Str("date", date.String()).Msg("Failed to resolve register session")
		return nil, &domain.PartialDataError{Failures: []domain.SourceFailure{{Source: SourceRegisterSession, Err: err}}}
	}

	type fetch struct {
		source string
		run    func(ctx context.Context) error
	}

	var (
		income    = make([][]domain.IncomeRecord, len(domain.IncomeOrigins))
		expenses  []domain.Expense
		movements []domain.CashMovement
		fetches   []fetch
	)
	for i, origin := range domain.IncomeOrigins {
		kind, err := records.IncomeKind(origin)
		if err != nil {
			return nil, fmt.Errorf("Report: %w", err)
		}
		fetches = append(fetches, fetch{string(kind), func(ctx context.Context) (err error) {
			income[i], err = e.store.ListIncome(ctx, kind, date)
			return err
		}})
	}
	fetches = append(fetches,
		fetch{SourceExpenses, func(ctx context.Context) (err error) {
			expenses, err = e.store.ListExpenses(ctx, window, records.LiveExpenses)
			return err
		}},
		fetch{SourceMovements, func(ctx context.Context) (err error) {
			movements, err = e.store.ListMovements(ctx, records.MovementFilter{Window: &window})
			return err
		}},
	)

	// Fetches are not cancelled on a sibling's failure so every failing
	// source gets named.
	errs := make([]error, len(fetches))
	var g errgroup.Group
	for i, f := range fetches {
		g.Go(func() error {
			errs[i] = f.run(ctx)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		var failures []domain.SourceFailure
		for i, err := range errs {
			if err != nil {
				failures = append(failures, domain.SourceFailure{Source: fetches[i].source, Err: err})
				log.Error().Err(err).Str("source", fetches[i].source).Str("date", date.String()).Msg("Failed to fetch reconciliation source")
			}
		}
		return nil, &domain.PartialDataError{Failures: failures}
	}

	byOrigin := make(map[domain.Origin][]domain.IncomeRecord, len(domain.IncomeOrigins))
	for i, origin := range domain.IncomeOrigins {
		byOrigin[origin] = income[i]
	}
	report := build(date, session, byOrigin, expenses, movements)

	for _, w := range report.Unmapped {
		log.Warn().
			Str("origin", string(w.Origin)).
			Str("raw_method", w.Raw).
			Int("count", w.Count).
			Str("amount", domain.FormatMoney(w.Amount)).
			Msg("Unmapped payment method")
	}
	log.Info().
		Str("date", date.String()).
		Str("total_income", domain.FormatMoney(report.TotalIncome)).
		Str("total_expenses", domain.FormatMoney(report.TotalExpenses)).
		Str("cash_in_hand", domain.FormatMoney(report.CashInHand)).
		Str("in_bank", domain.FormatMoney(report.InBank)).
		Msg("Reconciliation report built")

	return report, nil
}

// build is the pure part of the reconciliation.
func build(date civil.Date, session *domain.RegisterSession, income map[domain.Origin][]domain.IncomeRecord, expenses []domain.Expense, movements []domain.CashMovement) *Report {
	r := &Report{
		Date:           date,
		RegisterStatus: domain.RegisterNotOpened,
		OpeningAmount:  domain.Zero,
		IncomeByMethod: newMethodTotals(),
		TotalIncome:    domain.Zero,
	}
	if session != nil {
		r.RegisterOpened = true
		r.RegisterStatus = session.Status
		r.OpeningAmount = session.OpeningAmount
	}

	var unmapped unmappedTally

	for _, origin := range domain.IncomeOrigins {
		s := summarizeIncome(origin, income[origin], &unmapped)
		r.IncomeBySource = append(r.IncomeBySource, s)
		r.IncomeByMethod.merge(s.ByMethod)
		r.TotalIncome = r.TotalIncome.Add(s.Total)
		r.IncomeCount += s.Count
	}

	r.ExpensesByMethod, r.ExpensesByCategory, r.TotalExpenses = summarizeExpenses(expenses, &unmapped)
	r.ExpenseCount = len(expenses)

	r.Movements = domain.SummarizeMovements(movements)

	r.CashInHand = r.OpeningAmount.
		Add(r.IncomeByMethod.Cash).
		Sub(r.ExpensesByMethod.Cash).
		Sub(r.Movements.DepositsTotal).
		Add(r.Movements.CashInTotal).
		Sub(r.Movements.CashOutTotal)

	// Business rule: in-bank is money moved into the bank (transfers
	// received plus deposits). Withdrawals are not debited here; this is
	// not a live bank balance.
	r.InBank = r.IncomeByMethod.Transfer.Add(r.Movements.DepositsTotal)

	r.NetBalance = r.TotalIncome.Sub(r.TotalExpenses)
	r.Unmapped = unmapped.list()

	return r
}

// ParseDate parses a YYYY-MM-DD business date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, &domain.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return d, nil
}
