/*
tax.go - Commission and tax expense calculation

PURPOSE:
  Two calculators that turn service configuration and realized income into
  expected costs:

  ExpectedCommission:
    seller / account-manager commission and account-manager fee for a query
    window. Each is the service's stored per-period amount times the number
    of periods intersecting the window. Amounts are fixed when the service is
    configured; later rate edits never change historical expectations, so
    nothing is recomputed from percentages here.

  ComputeTax:
    turnover tax (USN) and VAT for an income using the legal entity's rates,
    rounded to the nearest minor unit.

BULK GENERATION:
  Engine.BulkGenerateTaxExpenses applies ComputeTax to a set of incomes,
  skipping incomes that already have an expense linked through
  SourceIncomeID. Each income is decided and written in its own transaction.

SEE ALSO:
  - money.go:  Money.Percent rounding
  - expenses.go: BulkGenerateTaxExpenses
*/
package billing

// =============================================================================
// COMMISSION
// =============================================================================

type Commission struct {
	Periods              int
	SellerAmount         Money
	AccountManagerAmount Money
	AccountManagerFee    Money
}

// ExpectedCommission scales the per-period amounts linearly.
func ExpectedCommission(s Service, periodsInRange int) Commission {
	n := int64(periodsInRange)
	return Commission{
		Periods:              periodsInRange,
		SellerAmount:         s.SellerCommission.Mul(n),
		AccountManagerAmount: s.AccountManagerCommission.Mul(n),
		AccountManagerFee:    s.AccountManagerFee.Mul(n),
	}
}

// CountPeriodsInRange counts periods whose range intersects [from, to].
func CountPeriodsInRange(periods []Period, from, to Date) int {
	n := 0
	for _, p := range periods {
		if p.Intersects(from, to) {
			n++
		}
	}
	return n
}

// =============================================================================
// TAX
// =============================================================================

type TaxAmounts struct {
	Tax Money
	VAT Money
}

// ComputeTax returns round(amount * usn / 100) and, when withVAT is set and
// the entity has a positive VAT rate, round(amount * vat / 100).
func ComputeTax(amount Money, le LegalEntity, withVAT bool) TaxAmounts {
	out := TaxAmounts{Tax: amount.Percent(le.UsnPercent)}
	if withVAT && le.VatPercent.IsPositive() {
		out.VAT = amount.Percent(le.VatPercent)
	}
	return out
}

// BulkTaxInput selects incomes and cost items for bulk tax generation.
// When IncomeIDs is empty, incomes are selected by LegalEntityID and the
// optional [From, To] received-at range.
type BulkTaxInput struct {
	LegalEntityID LegalEntityID
	IncomeIDs     []IncomeID
	From          *Date
	To            *Date
	CostItemID    CostItemID
	CostItemIDVat *CostItemID
}

type SkipReason string

const (
	SkipAlreadyTaxed SkipReason = "already_taxed"
	SkipZeroAmount   SkipReason = "zero_amount"
)

type SkippedIncome struct {
	IncomeID IncomeID
	Reason   SkipReason
}

type FailedIncome struct {
	IncomeID IncomeID
	Err      error
}

// BulkTaxResult reports every income of the run exactly once.
type BulkTaxResult struct {
	Created []Expense
	Skipped []SkippedIncome
	Failed  []FailedIncome
	Total   Money // sum of created expense amounts
}
