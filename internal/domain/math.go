package domain

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SafeSum adds string amounts, treating invalid ones as zero.
func SafeSum(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(SafeParse(v))
	}
	return total
}

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// WholeUnits returns the integer part of an amount, truncating toward zero.
// "5.9" is 5, an invalid amount is 0. Amounts outside the int64 range are
// clamped to it.
func WholeUnits(value string) int64 {
	return ClampInt64(SafeParse(value).Truncate(0))
}

// ClampInt64 returns the integer part of d, clamped to the int64 range.
func ClampInt64(d decimal.Decimal) int64 {
	switch {
	case d.GreaterThan(maxInt64):
		return math.MaxInt64
	case d.LessThan(minInt64):
		return math.MinInt64
	}
	return d.IntPart()
}

// FromBaseUnits converts an on-chain integer amount into whole units.
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToBaseUnits converts a whole-unit amount into an on-chain integer amount,
// dropping precision beyond decimals.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}
