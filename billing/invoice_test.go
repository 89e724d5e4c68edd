package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/agency-billing/billing"
)

func TestInvoiceTotals_OverpayGoesNegative(t *testing.T) {
	// GIVEN: An invoice of two lines, 50000 and 30000
	// WHEN: Paying 80000, then another 10000
	// THEN: Outstanding is 0, then -10000

	lines := []billing.InvoiceLine{{ID: "l1", Amount: 50000}, {ID: "l2", Amount: 30000}}
	inv := billing.Invoice{ID: "inv-1", Amount: billing.InvoiceTotal(lines)}
	assert.Equal(t, billing.Money(80000), inv.Amount)

	payments := []billing.Payment{{ID: "pay-1", Amount: 80000}}
	assert.Equal(t, billing.Money(0), billing.OutstandingBalance(inv, payments))

	payments = append(payments, billing.Payment{ID: "pay-2", Amount: 10000})
	assert.Equal(t, billing.Money(90000), billing.PaidTotal(payments))
	assert.Equal(t, billing.Money(-10000), billing.OutstandingBalance(inv, payments))
}

func TestInvoiceTotals_Empty(t *testing.T) {
	assert.Equal(t, billing.Money(0), billing.InvoiceTotal(nil))
	assert.Equal(t, billing.Money(0), billing.PaidTotal(nil))
	assert.Equal(t, billing.Money(1500), billing.OutstandingBalance(billing.Invoice{Amount: 1500}, nil))
}
