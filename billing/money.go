package billing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer amount in minor currency units (kopecks, cents)
// =============================================================================

// Money is an amount in minor units. All financial arithmetic in the engine
// happens on Money; conversion to display currency happens at the edge.
type Money int64

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

func (m Money) Add(o Money) Money        { return m + o }
func (m Money) Sub(o Money) Money        { return m - o }
func (m Money) Mul(n int64) Money        { return m * Money(n) }
func (m Money) Neg() Money               { return -m }
func (m Money) IsZero() bool             { return m == 0 }
func (m Money) IsNegative() bool         { return m < 0 }
func (m Money) IsPositive() bool         { return m > 0 }
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }

// Percent returns m * rate / 100 rounded to the nearest minor unit, halves
// away from zero. It never truncates.
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money(m.Decimal().Mul(rate).Div(hundred).Round(0).IntPart())
}

// String formats the amount in major units with two decimals ("1234.56").
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// ParseMoney parses a major-unit decimal string ("1234.56") into minor units.
// More than two fractional digits is an error, not a rounding.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Mul(hundred)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("invalid amount %q: more than two fractional digits", s)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return Money(minor.IntPart()), nil
}
