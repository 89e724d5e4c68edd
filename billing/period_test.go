package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
)

func d(s string) billing.Date { return billing.MustParseDate(s) }

func ranges(periods []billing.GeneratedPeriod) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = billing.DateRange{From: p.DateFrom, To: p.DateTo}.String()
	}
	return out
}

// =============================================================================
// GENERATOR TESTS
// =============================================================================

func TestGenerate_Monthly_EndsDayBeforeSameDayNextMonth(t *testing.T) {
	// GIVEN: A monthly service starting 2024-12-04
	// WHEN: Generating up to 2025-01-15
	// THEN: Two chained periods, both invoiceable

	got := billing.Generate(d("2024-12-04"), billing.CadenceMonthly, d("2025-01-15"))

	assert.Equal(t, []string{
		"[2024-12-04..2025-01-03]",
		"[2025-01-04..2025-02-03]",
	}, ranges(got))
	for _, p := range got {
		assert.True(t, p.IsInvoicePeriod)
	}
}

func TestGenerate_Chaining_NoGapsNoOverlaps(t *testing.T) {
	starts := []string{"2024-01-31", "2024-02-29", "2025-03-15", "2024-12-01"}
	for _, start := range starts {
		t.Run(start, func(t *testing.T) {
			// GIVEN: Any start day, including month ends
			// WHEN: Generating two years of periods
			// THEN: Each period starts the day after the previous one ends

			got := billing.Generate(d(start), billing.CadenceMonthly, d(start).AddMonths(24))
			require.NotEmpty(t, got)
			assert.Equal(t, d(start), got[0].DateFrom)
			for i := 1; i < len(got); i++ {
				assert.Equal(t, got[i-1].DateTo.AddDays(1), got[i].DateFrom, "period %d", i)
				assert.False(t, got[i].DateTo.Before(got[i].DateFrom), "period %d", i)
			}
		})
	}
}

func TestGenerate_MonthEndStart_ClampsWithoutDrift(t *testing.T) {
	// GIVEN: A service starting January 31st
	// WHEN: Generating through April
	// THEN: February clamps, March returns to the 31st anchor

	got := billing.Generate(d("2025-01-31"), billing.CadenceMonthly, d("2025-04-01"))

	assert.Equal(t, []string{
		"[2025-01-31..2025-02-27]",
		"[2025-02-28..2025-03-30]",
		"[2025-03-31..2025-04-29]",
	}, ranges(got))
}

func TestGenerate_HorizonIsInclusiveOnStart(t *testing.T) {
	// GIVEN: Horizon equal to the start of the second period
	// WHEN: Generating
	// THEN: The second period is included

	got := billing.Generate(d("2025-01-04"), billing.CadenceMonthly, d("2025-02-04"))
	assert.Len(t, got, 2)

	got = billing.Generate(d("2025-01-04"), billing.CadenceMonthly, d("2025-02-03"))
	assert.Len(t, got, 1)
}

func TestGenerate_HorizonBeforeStart_Empty(t *testing.T) {
	got := billing.Generate(d("2025-06-01"), billing.CadenceMonthly, d("2025-05-01"))
	assert.Empty(t, got)
}

func TestGenerate_OneTime_SinglePeriodRegardlessOfHorizon(t *testing.T) {
	// GIVEN: A one-time service
	// WHEN: Generating with horizons before and far after the start
	// THEN: Exactly one invoiceable period each time

	for _, horizon := range []string{"2020-01-01", "2025-03-10", "2030-01-01"} {
		got := billing.Generate(d("2025-03-10"), billing.CadenceOneTime, d(horizon))
		require.Len(t, got, 1, horizon)
		assert.Equal(t, "[2025-03-10..2025-04-09]", ranges(got)[0])
		assert.True(t, got[0].IsInvoicePeriod)
	}
}

func TestGenerate_Quarterly_SameAsMonthly(t *testing.T) {
	start, horizon := d("2024-05-20"), d("2025-05-20")

	monthly := billing.Generate(start, billing.CadenceMonthly, horizon)
	quarterly := billing.Generate(start, billing.CadenceQuarterly, horizon)

	assert.Equal(t, monthly, quarterly)
}

func TestGenerate_Yearly_InvoiceablePeriodEndsInDecember(t *testing.T) {
	// GIVEN: A yearly service starting 2024-03-15
	// WHEN: Generating into the next year
	// THEN: Periods are monthly; only the one ending in December invoices

	got := billing.Generate(d("2024-03-15"), billing.CadenceYearly, d("2025-02-01"))

	var invoiceable []string
	for _, p := range got {
		if p.IsInvoicePeriod {
			invoiceable = append(invoiceable, billing.DateRange{From: p.DateFrom, To: p.DateTo}.String())
			assert.Equal(t, time.December, p.DateTo.Month())
		}
	}
	assert.Equal(t, []string{"[2024-11-15..2024-12-14]"}, invoiceable)
	assert.Len(t, got, 11)
}

func TestHorizonFor(t *testing.T) {
	end := d("2025-06-30")
	tests := []struct {
		name  string
		svc   billing.Service
		today billing.Date
		want  billing.Date
	}{
		{"open service", billing.Service{}, d("2025-01-15"), d("2025-02-15")},
		{"closed service", billing.Service{EndDate: &end}, d("2025-01-15"), end},
		{"month end clamps", billing.Service{}, d("2025-01-31"), d("2025-02-28")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.HorizonFor(tt.svc, tt.today))
		})
	}
}
