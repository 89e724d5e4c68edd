package billing_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// MONEY
// =============================================================================

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    billing.Money
		wantErr bool
	}{
		{"1234.56", 123456, false},
		{"800", 80000, false},
		{"-100.5", -10050, false},
		{"0.001", 0, true},
		{"abc", 0, true},
		{"92233720368547758.07", math.MaxInt64, false},
		{"92233720368547758.08", 0, true},
		{"-92233720368547758.09", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := billing.ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "800.00", billing.Money(80000).String())
	assert.Equal(t, "-100.00", billing.Money(-10000).String())
	assert.Equal(t, "0.05", billing.Money(5).String())
}

// =============================================================================
// DATE
// =============================================================================

func TestDate_AddMonths_Clamps(t *testing.T) {
	assert.Equal(t, d("2025-02-28"), d("2025-01-31").AddMonths(1))
	assert.Equal(t, d("2024-02-29"), d("2024-01-31").AddMonths(1))
	assert.Equal(t, d("2026-01-15"), d("2025-12-15").AddMonths(1))
	assert.Equal(t, d("2024-11-30"), d("2024-12-31").AddMonths(-1))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 7, billing.DaysBetween(d("2025-02-03"), d("2025-02-10")))
	assert.Equal(t, -3, billing.DaysBetween(d("2025-02-03"), d("2025-01-31")))
	assert.Equal(t, 366, billing.DaysBetween(d("2024-01-01"), d("2025-01-01")))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		At billing.Date `json:"at"`
	}

	out, err := json.Marshal(wrapper{At: d("2025-01-04")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2025-01-04"}`, string(out))

	out, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":null}`, string(out))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"at":""}`), &w))
	assert.True(t, w.At.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`{"at":"04/01/2025"}`), &w))
}
