package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
)

func threeMonths() []billing.Period {
	return []billing.Period{
		persisted("p1", "2025-01-04", "2025-02-03"),
		persisted("p2", "2025-02-04", "2025-03-03"),
		persisted("p3", "2025-03-04", "2025-04-03"),
	}
}

func TestPlanAdjustment_CascadeShiftsLaterPeriods(t *testing.T) {
	// GIVEN: Three chained monthly periods
	// WHEN: Extending the first by 7 days with cascade
	// THEN: The next period becomes [2025-02-11..2025-03-10] and every
	//       shifted period keeps its duration

	before := threeMonths()
	plan, err := billing.PlanAdjustment(before, "p1", d("2025-02-10"), true)
	require.NoError(t, err)

	require.Len(t, plan, 3)
	assert.Equal(t, billing.PeriodID("p1"), plan[0].ID)
	assert.Equal(t, d("2025-01-04"), plan[0].DateFrom)
	assert.Equal(t, d("2025-02-10"), plan[0].DateTo)

	assert.Equal(t, "[2025-02-11..2025-03-10]", billing.DateRange{From: plan[1].DateFrom, To: plan[1].DateTo}.String())
	assert.Equal(t, "[2025-03-11..2025-04-10]", billing.DateRange{From: plan[2].DateFrom, To: plan[2].DateTo}.String())
	assert.Equal(t, before[1].Duration(), plan[1].Duration())
	assert.Equal(t, before[2].Duration(), plan[2].Duration())
}

func TestPlanAdjustment_NegativeDelta(t *testing.T) {
	// GIVEN: Three chained periods
	// WHEN: Shortening the first by 3 days with cascade
	// THEN: Later periods move 3 days earlier and stay contiguous

	plan, err := billing.PlanAdjustment(threeMonths(), "p1", d("2025-01-31"), true)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, d("2025-02-01"), plan[1].DateFrom)
	assert.Equal(t, plan[0].DateTo.AddDays(1), plan[1].DateFrom)
	assert.Equal(t, plan[1].DateTo.AddDays(1), plan[2].DateFrom)
}

func TestPlanAdjustment_NoCascade_OnlyTarget(t *testing.T) {
	plan, err := billing.PlanAdjustment(threeMonths(), "p1", d("2025-02-10"), false)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, d("2025-02-10"), plan[0].DateTo)
}

func TestPlanAdjustment_ZeroDelta_OnlyTarget(t *testing.T) {
	plan, err := billing.PlanAdjustment(threeMonths(), "p2", d("2025-03-03"), true)
	require.NoError(t, err)
	assert.Len(t, plan, 1)
}

func TestPlanAdjustment_EarlierPeriodsUntouched(t *testing.T) {
	// GIVEN: Three periods
	// WHEN: Adjusting the middle one with cascade
	// THEN: Only the middle and the last change

	plan, err := billing.PlanAdjustment(threeMonths(), "p2", d("2025-03-05"), true)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, billing.PeriodID("p2"), plan[0].ID)
	assert.Equal(t, billing.PeriodID("p3"), plan[1].ID)
	assert.Equal(t, d("2025-03-06"), plan[1].DateFrom)
}

func TestPlanAdjustment_CascadeOrderIsByDateFrom(t *testing.T) {
	periods := threeMonths()
	periods[1], periods[2] = periods[2], periods[1]

	plan, err := billing.PlanAdjustment(periods, "p1", d("2025-02-05"), true)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, billing.PeriodID("p2"), plan[1].ID)
	assert.Equal(t, billing.PeriodID("p3"), plan[2].ID)
}

func TestPlanAdjustment_Errors(t *testing.T) {
	tests := []struct {
		name      string
		target    billing.PeriodID
		newDateTo string
		check     func(error) bool
	}{
		{"unknown period", "nope", "2025-02-10", billing.IsNotFound},
		{"end equals start", "p1", "2025-01-04", billing.IsClientError},
		{"end before start", "p1", "2025-01-01", billing.IsClientError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := billing.PlanAdjustment(threeMonths(), tt.target, d(tt.newDateTo), true)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}
