package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
)

func TestEngine_Service_OwnScope(t *testing.T) {
	f := newFixture(t)

	svc, err := f.engine.Service(f.ctx, seller, f.service.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.Money(1000), svc.SellerCommission)

	_, err = f.engine.Service(f.ctx, outsider, f.service.ID)
	assert.True(t, billing.IsForbidden(err))

	_, err = f.engine.Service(f.ctx, finance, f.service.ID)
	assert.NoError(t, err)

	_, err = f.engine.Service(f.ctx, am, "svc-missing")
	assert.True(t, billing.IsNotFound(err))
}

func TestEngine_RecordIncome(t *testing.T) {
	// GIVEN: A legal entity and a confirmed period of the service
	// WHEN: The account manager records an income on it
	// THEN: It is stored with the creator and feeds the bulk tax run

	f := newFixture(t)
	ts := f.taxSetup(t)
	p := f.confirm(t, "2025-01-04")

	in, err := f.engine.RecordIncome(f.ctx, am, billing.RecordIncomeInput{
		ServiceID:     f.service.ID,
		PeriodID:      &p.ID,
		LegalEntityID: ts.le.ID,
		Amount:        100000,
		ReceivedAt:    d("2025-01-20"),
	})
	require.NoError(t, err)
	assert.Equal(t, am.ID, in.CreatedBy)
	require.NotNil(t, in.PeriodID)
	assert.Equal(t, p.ID, *in.PeriodID)

	stored, err := f.store.GetIncome(f.ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, billing.Money(100000), stored.Amount)

	res, err := f.engine.BulkGenerateTaxExpenses(f.ctx, am, billing.BulkTaxInput{
		LegalEntityID: ts.le.ID,
		IncomeIDs:     []billing.IncomeID{in.ID},
		CostItemID:    ts.tax.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, billing.Money(6000), res.Total)
}

func TestEngine_RecordIncome_Rejections(t *testing.T) {
	f := newFixture(t)
	ts := f.taxSetup(t)
	_, other := f.addService(t, "c2", d("2024-12-04"), billing.CadenceMonthly, 10000)
	foreign, err := f.engine.CreatePeriod(f.ctx, am, billing.CreatePeriodInput{
		ServiceID: other.ID, DateFrom: d("2024-12-04"), DateTo: d("2025-01-03"),
	})
	require.NoError(t, err)
	missingLE := billing.LegalEntityID("le-missing")

	valid := func() billing.RecordIncomeInput {
		return billing.RecordIncomeInput{ServiceID: f.service.ID, LegalEntityID: ts.le.ID, Amount: 100, ReceivedAt: d("2025-01-10")}
	}
	tests := []struct {
		name  string
		actor billing.Actor
		edit  func(*billing.RecordIncomeInput)
		check func(error) bool
	}{
		{"outsider", outsider, func(*billing.RecordIncomeInput) {}, billing.IsForbidden},
		{"missing service id", am, func(in *billing.RecordIncomeInput) { in.ServiceID = "" }, billing.IsClientError},
		{"missing received date", am, func(in *billing.RecordIncomeInput) { in.ReceivedAt = billing.Date{} }, billing.IsClientError},
		{"negative amount", am, func(in *billing.RecordIncomeInput) { in.Amount = -1 }, billing.IsClientError},
		{"unknown service", am, func(in *billing.RecordIncomeInput) { in.ServiceID = "svc-missing" }, billing.IsNotFound},
		{"unknown legal entity", am, func(in *billing.RecordIncomeInput) { in.LegalEntityID = missingLE }, billing.IsNotFound},
		{"period of another service", am, func(in *billing.RecordIncomeInput) { in.PeriodID = &foreign.ID }, billing.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.edit(&in)
			_, err := f.engine.RecordIncome(f.ctx, tt.actor, in)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}
