package billing

// =============================================================================
// PERIOD RECONCILER - Generated calendar vs persisted periods
// =============================================================================

// PeriodView is one row of the reconciled calendar.
type PeriodView struct {
	DateFrom          Date
	DateTo            Date
	IsInvoicePeriod   bool
	PersistedPeriodID *PeriodID // nil when the row is expected-only
	PeriodType        PeriodType
	ExpectedAmount    Money
	InvoiceCount      int // invoices already referencing the persisted period
}

func (v PeriodView) Recorded() bool { return v.PersistedPeriodID != nil }

type boundary struct{ from, to string }

func boundaryOf(from, to Date) boundary { return boundary{from.String(), to.String()} }

// Reconcile matches each generated period to a persisted period with exactly
// the same (DateFrom, DateTo). Overlap is not a match: a manually adjusted
// period drops out of the generated view. Read-only.
func Reconcile(generated []GeneratedPeriod, persisted []Period, defaultAmount Money) []PeriodView {
	byBoundary := make(map[boundary]Period, len(persisted))
	for _, p := range persisted {
		byBoundary[boundaryOf(p.DateFrom, p.DateTo)] = p
	}

	views := make([]PeriodView, 0, len(generated))
	for _, g := range generated {
		view := PeriodView{
			DateFrom:        g.DateFrom,
			DateTo:          g.DateTo,
			IsInvoicePeriod: g.IsInvoicePeriod,
			PeriodType:      PeriodStandard,
			ExpectedAmount:  defaultAmount,
		}
		if p, ok := byBoundary[boundaryOf(g.DateFrom, g.DateTo)]; ok {
			id := p.ID
			view.PersistedPeriodID = &id
			view.PeriodType = p.Type
			view.ExpectedAmount = p.Expected(defaultAmount)
		}
		views = append(views, view)
	}
	return views
}

// Unmatched returns the persisted periods no generated period matched
// exactly, in persisted order. These are manual or adjusted periods.
func Unmatched(generated []GeneratedPeriod, persisted []Period) []Period {
	expected := make(map[boundary]bool, len(generated))
	for _, g := range generated {
		expected[boundaryOf(g.DateFrom, g.DateTo)] = true
	}
	var out []Period
	for _, p := range persisted {
		if !expected[boundaryOf(p.DateFrom, p.DateTo)] {
			out = append(out, p)
		}
	}
	return out
}

// annotateInvoices fills InvoiceCount from a per-period invoice count.
func annotateInvoices(views []PeriodView, counts map[PeriodID]int) {
	for i := range views {
		if id := views[i].PersistedPeriodID; id != nil {
			views[i].InvoiceCount = counts[*id]
		}
	}
}
