package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/agency-billing/billing"
)

func entity(usn, vat string) billing.LegalEntity {
	return billing.LegalEntity{
		ID:         "le-1",
		UsnPercent: decimal.RequireFromString(usn),
		VatPercent: decimal.RequireFromString(vat),
	}
}

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name    string
		amount  billing.Money
		le      billing.LegalEntity
		withVAT bool
		want    billing.TaxAmounts
	}{
		{"six percent", 100000, entity("6", "20"), false, billing.TaxAmounts{Tax: 6000}},
		{"with vat", 100000, entity("6", "20"), true, billing.TaxAmounts{Tax: 6000, VAT: 20000}},
		{"vat requested but zero rate", 100000, entity("6", "0"), true, billing.TaxAmounts{Tax: 6000}},
		{"rounds half away from zero", 25, entity("6", "0"), false, billing.TaxAmounts{Tax: 2}},   // 1.5
		{"rounds down below half", 24, entity("6", "0"), false, billing.TaxAmounts{Tax: 1}},      // 1.44
		{"fractional rate", 100001, entity("6.5", "0"), false, billing.TaxAmounts{Tax: 6500}},    // 6500.065
		{"zero amount", 0, entity("6", "20"), true, billing.TaxAmounts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.ComputeTax(tt.amount, tt.le, tt.withVAT))
		})
	}
}

func TestExpectedCommission_ScalesLinearly(t *testing.T) {
	// GIVEN: A service paying 1000 seller, 2000 account manager commission
	//        and a 500 fee per period
	// WHEN: Three periods fall in the window
	// THEN: Each amount triples

	svc := billing.Service{SellerCommission: 1000, AccountManagerCommission: 2000, AccountManagerFee: 500}

	got := billing.ExpectedCommission(svc, 3)

	assert.Equal(t, billing.Commission{
		Periods:              3,
		SellerAmount:         3000,
		AccountManagerAmount: 6000,
		AccountManagerFee:    1500,
	}, got)
	assert.Equal(t, billing.Commission{}, billing.ExpectedCommission(svc, 0))
}

func TestCountPeriodsInRange_Intersection(t *testing.T) {
	periods := []billing.Period{
		persisted("p1", "2025-01-01", "2025-01-31"),
		persisted("p2", "2025-02-01", "2025-02-28"),
		persisted("p3", "2025-03-01", "2025-03-31"),
	}
	tests := []struct {
		from, to string
		want     int
	}{
		{"2025-01-15", "2025-02-01", 2}, // touches p2 on its first day
		{"2025-01-31", "2025-01-31", 1},
		{"2024-01-01", "2024-12-31", 0},
		{"2024-12-01", "2025-12-31", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, billing.CountPeriodsInRange(periods, d(tt.from), d(tt.to)), tt.from+".."+tt.to)
	}
}
