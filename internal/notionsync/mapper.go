package notionsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/jomei/notionapi"
)

// Property names of the closings database.
const (
	PropDay            = "Day"
	PropBusinessDate   = "Business Date"
	PropRegisterStatus = "Register Status"
	PropOpeningAmount  = "Opening Amount"
	PropTotalIncome    = "Total Income"
	PropTotalExpenses  = "Total Expenses"
	PropCashInHand     = "Cash In Hand"
	PropInBank         = "In Bank"
	PropNetBalance     = "Net Balance"
	PropDeposits       = "Deposits"
	PropMovements      = "Movements"
	PropTopCategory    = "Top Category"
	PropUnmapped       = "Unmapped Methods"
	PropSnapshot       = "Snapshot"
	PropClosedAt       = "Closed At"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func number(m domain.Money) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: m.Round(2).InexactFloat64()}
}

// ClosingToNotionProperties converts a day's report into the properties of
// its closings page. The title is the YYYY-MM-DD date, which keys the upsert.
func ClosingToNotionProperties(report *reconcile.Report, snapshotURI string, closedAt time.Time) notionapi.Properties {
	day := notionapi.Date(time.Date(report.Date.Year, report.Date.Month, report.Date.Day, 0, 0, 0, 0, time.UTC))
	closed := notionapi.Date(closedAt)

	props := notionapi.Properties{
		PropDay: notionapi.TitleProperty{
			Title: richText(report.Date.String()),
		},
		PropBusinessDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &day},
		},
		PropRegisterStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(report.RegisterStatus)},
		},
		PropOpeningAmount: number(report.OpeningAmount),
		PropTotalIncome:   number(report.TotalIncome),
		PropTotalExpenses: number(report.TotalExpenses),
		PropCashInHand:    number(report.CashInHand),
		PropInBank:        number(report.InBank),
		PropNetBalance:    number(report.NetBalance),
		PropDeposits:      number(report.Movements.DepositsTotal),
		PropMovements: notionapi.NumberProperty{
			Number: float64(report.Movements.Count),
		},
		PropClosedAt: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &closed},
		},
	}

	if len(report.ExpensesByCategory) > 0 {
		top := report.ExpensesByCategory[0]
		props[PropTopCategory] = notionapi.RichTextProperty{
			RichText: richText(fmt.Sprintf("%s (%s)", top.Name, domain.FormatMoney(top.Total))),
		}
	}

	// Unmapped labels are listed so the operator can fix the source data.
	if len(report.Unmapped) > 0 {
		lines := make([]string, 0, len(report.Unmapped))
		for _, w := range report.Unmapped {
			lines = append(lines, fmt.Sprintf("%s %q x%d = %s", w.Origin, w.Raw, w.Count, domain.FormatMoney(w.Amount)))
		}
		props[PropUnmapped] = notionapi.RichTextProperty{
			RichText: richText(strings.Join(lines, "\n")),
		}
	}

	if snapshotURI != "" {
		props[PropSnapshot] = notionapi.URLProperty{URL: snapshotURI}
	}

	return props
}

// extractDay extracts the YYYY-MM-DD title from a closings page.
// Returns empty string if not found.
func extractDay(page notionapi.Page) string {
	if prop, ok := page.Properties[PropDay]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
