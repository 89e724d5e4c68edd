package billing

// =============================================================================
// INVOICE LEDGER - Derived totals
// =============================================================================
//
// Invoice.Amount is stored but is never edited directly: every line mutation
// re-derives it from the full remaining line set inside the same
// transaction. Outstanding balance is not stored at all.

// InvoiceTotal is the sum of line amounts.
func InvoiceTotal(lines []InvoiceLine) Money {
	var total Money
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// PaidTotal is the sum of payment amounts.
func PaidTotal(payments []Payment) Money {
	var total Money
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// OutstandingBalance is invoice.Amount minus payments, negative on overpay.
func OutstandingBalance(inv Invoice, payments []Payment) Money {
	return inv.Amount.Sub(PaidTotal(payments))
}

// InvoiceSummary is an invoice with everything derived from it.
type InvoiceSummary struct {
	Invoice     Invoice
	Lines       []InvoiceLine
	Payments    []Payment
	Paid        Money
	Outstanding Money
}

func summarize(inv Invoice, lines []InvoiceLine, payments []Payment) InvoiceSummary {
	return InvoiceSummary{
		Invoice:     inv,
		Lines:       lines,
		Payments:    payments,
		Paid:        PaidTotal(payments),
		Outstanding: OutstandingBalance(inv, payments),
	}
}

// CreateInvoiceInput describes a new invoice bound to its primary period.
// Amount is what the operator bills, not the period price: partial, split
// and negotiated billing are legitimate.
type CreateInvoiceInput struct {
	PeriodID           PeriodID
	Amount             Money
	Coverage           DateRange // defaults to the primary period range
	LegalEntityID      LegalEntityID
	InvoiceNumber      string
	InvoiceNotRequired bool
	LineTitle          string
}

// UpdateInvoiceInput changes invoice attributes. Nil fields are left alone.
// The amount is not here: it follows the lines.
type UpdateInvoiceInput struct {
	InvoiceNumber      *string
	Coverage           *DateRange
	LegalEntityID      *LegalEntityID
	InvoiceNotRequired *bool
}

type AddLineInput struct {
	InvoiceID   InvoiceID
	PeriodID    PeriodID
	Amount      Money
	Title       string
	Description string
}

type RecordPaymentInput struct {
	InvoiceID InvoiceID
	Amount    Money
	PaidAt    *Date // defaults to today
	Comment   string
}
