package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
	"github.com/warp/agency-billing/billing/store"
)

func d(s string) billing.Date { return billing.MustParseDate(s) }

func TestMemory_MissingRowsAreNil(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	svc, err := m.GetService(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, svc)

	inv, err := m.GetInvoice(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, inv)

	le, err := m.GetLegalEntity(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, le)
}

func TestMemory_ListPeriodsOrderedByDateFrom(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, p := range []billing.Period{
		{ID: "p3", ServiceID: "svc", DateFrom: d("2025-03-01"), DateTo: d("2025-03-31")},
		{ID: "p1", ServiceID: "svc", DateFrom: d("2025-01-01"), DateTo: d("2025-01-31")},
		{ID: "other", ServiceID: "svc-2", DateFrom: d("2024-01-01"), DateTo: d("2024-01-31")},
		{ID: "p2", ServiceID: "svc", DateFrom: d("2025-02-01"), DateTo: d("2025-02-28")},
	} {
		require.NoError(t, m.SavePeriod(ctx, p))
	}

	got, err := m.ListPeriods(ctx, "svc")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []billing.PeriodID{"p1", "p2", "p3"}, []billing.PeriodID{got[0].ID, got[1].ID, got[2].ID})
}

func TestMemory_UniqueInvoiceLineAndExpense(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l1", InvoiceID: "inv", PeriodID: "p1"}))
	err := m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l2", InvoiceID: "inv", PeriodID: "p1"})
	assert.ErrorIs(t, err, billing.ErrConflict)

	// deleting frees the pair
	require.NoError(t, m.DeleteInvoiceLine(ctx, "l1"))
	assert.NoError(t, m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l3", InvoiceID: "inv", PeriodID: "p1"}))

	src := billing.IncomeID("inc-1")
	require.NoError(t, m.InsertExpense(ctx, billing.Expense{ID: "e1", CostItemID: "tax", SourceIncomeID: &src}))
	assert.NoError(t, m.InsertExpense(ctx, billing.Expense{ID: "e2", CostItemID: "vat", SourceIncomeID: &src}))
	err = m.InsertExpense(ctx, billing.Expense{ID: "e3", CostItemID: "tax", SourceIncomeID: &src})
	assert.ErrorIs(t, err, billing.ErrConflict)

	expenses, err := m.ListExpensesBySourceIncome(ctx, src)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, billing.ExpenseID("e1"), expenses[0].ID)
}

func TestMemory_CountInvoicesByPeriod(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SavePeriod(ctx, billing.Period{ID: "p1", ServiceID: "svc"}))
	require.NoError(t, m.SavePeriod(ctx, billing.Period{ID: "p2", ServiceID: "svc"}))
	require.NoError(t, m.SavePeriod(ctx, billing.Period{ID: "px", ServiceID: "svc-2"}))
	require.NoError(t, m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l1", InvoiceID: "inv-1", PeriodID: "p1"}))
	require.NoError(t, m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l2", InvoiceID: "inv-2", PeriodID: "p1"}))
	require.NoError(t, m.InsertInvoiceLine(ctx, billing.InvoiceLine{ID: "l3", InvoiceID: "inv-2", PeriodID: "px"}))

	counts, err := m.CountInvoicesByPeriod(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, map[billing.PeriodID]int{"p1": 2}, counts)
}

func TestMemory_ListIncomesFilter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, in := range []billing.Income{
		{ID: "i2", LegalEntityID: "le", ReceivedAt: d("2025-01-20")},
		{ID: "i1", LegalEntityID: "le", ReceivedAt: d("2025-01-10")},
		{ID: "i3", LegalEntityID: "le", ReceivedAt: d("2025-02-01")},
		{ID: "other", LegalEntityID: "le-2", ReceivedAt: d("2025-01-15")},
	} {
		require.NoError(t, m.SaveIncome(ctx, in))
	}
	from, to := d("2025-01-10"), d("2025-01-31")

	got, err := m.ListIncomes(ctx, billing.IncomeFilter{LegalEntityID: "le", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, billing.IncomeID("i1"), got[0].ID)
	assert.Equal(t, billing.IncomeID("i2"), got[1].ID)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A stored period
	// WHEN: A transaction deletes it, saves another, then fails
	// THEN: Both changes are gone

	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SavePeriod(ctx, billing.Period{ID: "p1", ServiceID: "svc"}))
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(s billing.Store) error {
		require.NoError(t, s.DeletePeriod(ctx, "p1"))
		require.NoError(t, s.SavePeriod(ctx, billing.Period{ID: "p2", ServiceID: "svc"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p1, err := m.GetPeriod(ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, p1)
	p2, err := m.GetPeriod(ctx, "p2")
	require.NoError(t, err)
	assert.Nil(t, p2)
}

func TestMemory_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.WithTx(ctx, func(s billing.Store) error {
		return s.InsertPayment(ctx, billing.Payment{ID: "pay-1", InvoiceID: "inv", Amount: 100})
	})
	require.NoError(t, err)

	payments, err := m.ListPayments(ctx, "inv")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
