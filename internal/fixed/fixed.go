package fixed

import (
	"github.com/shopspring/decimal"
)

// Monetary values are decimal.Decimal carrying raw (undecimaled) integer
// amounts. Rounding direction is always explicit: amounts a user receives
// round down, amounts a user must guarantee round up.

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// IsGood reports whether a value is usable as a quote result: strictly
// positive. Zero and negative results are treated as "no liquidity" by
// callers rather than propagated.
func IsGood(v decimal.Decimal) bool {
	return v.Sign() > 0
}

// Shift multiplies v by 10^decimals, converting a display amount to raw units.
func Shift(v decimal.Decimal, decimals int32) decimal.Decimal {
	return v.Shift(decimals)
}

// Unshift divides v by 10^decimals, converting raw units back to a display amount.
func Unshift(v decimal.Decimal, decimals int32) decimal.Decimal {
	return v.Shift(-decimals)
}

// DivFloor returns a/b rounded toward zero. b must be non-zero; callers guard
// zero reserves before dividing.
func DivFloor(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// DivCeil returns a/b rounded away from zero for positive operands.
func DivCeil(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if !r.IsZero() {
		q = q.Add(decimal.New(1, 0))
	}
	return q
}

// MulDivFloor returns a*n/d rounded down.
func MulDivFloor(a, n, d decimal.Decimal) decimal.Decimal {
	return DivFloor(a.Mul(n), d)
}

// MulDivCeil returns a*n/d rounded up.
func MulDivCeil(a, n, d decimal.Decimal) decimal.Decimal {
	return DivCeil(a.Mul(n), d)
}

// PercentOfFloor returns amount*percent/100 rounded down.
func PercentOfFloor(amount, percent decimal.Decimal) decimal.Decimal {
	return MulDivFloor(amount, percent, Hundred)
}
