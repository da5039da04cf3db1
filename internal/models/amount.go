package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits carried by Amount,
// matching USDC precision.
const AmountDecimals = 6

// Amount is a stablecoin quantity in integer minor units (1 USDC = 1_000_000).
type Amount int64

// AmountFromUnits converts whole units into minor units.
func AmountFromUnits(units int64) Amount {
	return Amount(units * 1_000_000)
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount parses a non-negative decimal string such as "12.5" into minor
// units. Digits beyond six decimal places are rejected rather than rounded,
// as is anything that does not fit in an Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", s)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimal places", s, AmountDecimals)
	}
	if scaled.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return Amount(scaled.IntPart()), nil
}

// Decimal returns the amount in whole units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -AmountDecimals)
}

// String formats the amount with six fixed decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(AmountDecimals)
}

// MulDiv returns floor(a * num / den) without intermediate overflow.
// den must be positive.
func MulDiv(a, num, den Amount) Amount {
	if den <= 0 {
		panic("models: MulDiv with non-positive denominator")
	}
	product := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(int64(num)))
	q, _ := product.QuoRem(decimal.NewFromInt(int64(den)), 0)
	return Amount(q.IntPart())
}
