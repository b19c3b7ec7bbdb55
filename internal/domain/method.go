package domain

import "sort"

// PaymentMethod is the normalized payment-method axis used by reports.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
	// MethodUnmapped marks a raw label that has no row in the normalization table.
	MethodUnmapped PaymentMethod = "unmapped"
)

// Origin identifies the store a money record was read from. Income variants
// are told apart by origin only; records carry no discriminator field.
type Origin string

const (
	OriginTuition      Origin = "tuition"
	OriginQuickPayment Origin = "quick_payment"
	OriginSale         Origin = "sale"
	OriginExpense      Origin = "expense"
)

// IncomeOrigins lists the income sources in report order.
var IncomeOrigins = []Origin{OriginTuition, OriginQuickPayment, OriginSale}

// methodTable maps each origin's raw payment-method labels onto the
// normalized axis. Labels are matched exactly: no trimming, no case folding.
var methodTable = map[Origin]map[string]PaymentMethod{
	OriginTuition: {
		"Efectivo":      MethodCash,
		"Transferencia": MethodTransfer,
	},
	OriginQuickPayment: {
		"Efectivo":      MethodCash,
		"Transferencia": MethodTransfer,
	},
	OriginSale: {
		"cash":     MethodCash,
		"transfer": MethodTransfer,
		"card":     MethodCard,
	},
	OriginExpense: {
		"cash":     MethodCash,
		"transfer": MethodTransfer,
		"card":     MethodCard,
	},
}

// NormalizeMethod maps a raw label from the given origin onto the normalized
// axis. The second result is false, and the method is MethodUnmapped, when
// the label is not in the table.
func NormalizeMethod(origin Origin, raw string) (PaymentMethod, bool) {
	if m, ok := methodTable[origin][raw]; ok {
		return m, true
	}
	return MethodUnmapped, false
}

// KnownMethodLabels returns the raw labels recognized for an origin, sorted.
func KnownMethodLabels(origin Origin) []string {
	labels := make([]string, 0, len(methodTable[origin]))
	for raw := range methodTable[origin] {
		labels = append(labels, raw)
	}
	sort.Strings(labels)
	return labels
}
