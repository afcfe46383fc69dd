// Package quote implements the constant-product bill calculator: forward and
// backward quotes, slippage application, and price impact.
package quote

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"swapScope/internal/fixed"
	"swapScope/internal/model"
)

var (
	// ErrNoLiquidity is the business outcome for any quote the pool cannot
	// serve: zero reserves, a requested receive at or above the reserve, or a
	// computation that would yield a non-positive amount.
	ErrNoLiquidity = errors.New("not enough liquidity")

	// ErrInvalidAmount rejects non-positive spend or receive amounts before
	// they reach the formula.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidSlippage rejects slippage outside (0, 100).
	ErrInvalidSlippage = errors.New("slippage must be between 0 and 100 exclusive")
)

// orient returns the pool reserves viewed from the side of spendRoot: the
// reserve the input joins and the reserve the output leaves.
func orient(pool model.Pool, spendRoot string) (in, out decimal.Decimal, err error) {
	to, ok := pool.Other(spendRoot)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("token %s not in pool %s", spendRoot, pool.Address)
	}
	if to == pool.RightRoot {
		return pool.LeftReserve, pool.RightReserve, nil
	}
	return pool.RightReserve, pool.LeftReserve, nil
}

// Forward quotes a swap with a known spend amount: fee is deducted from the
// input side, the output follows the constant-product formula against current
// reserves, and the result rounds down (never in the user's favor).
func Forward(pool model.Pool, spendRoot string, amount decimal.Decimal) (model.Quote, error) {
	if amount.Sign() <= 0 {
		return model.Quote{}, ErrInvalidAmount
	}
	if pool.FeeDenominator <= 0 || pool.FeeNumerator < 0 || pool.FeeNumerator >= pool.FeeDenominator {
		return model.Quote{}, fmt.Errorf("invalid fee %d/%d on pool %s", pool.FeeNumerator, pool.FeeDenominator, pool.Address)
	}

	reserveIn, reserveOut, err := orient(pool, spendRoot)
	if err != nil {
		return model.Quote{}, err
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return model.Quote{}, ErrNoLiquidity
	}

	feeNum := decimal.NewFromInt(pool.FeeNumerator)
	feeDen := decimal.NewFromInt(pool.FeeDenominator)

	fee := fixed.MulDivFloor(amount, feeNum, feeDen)
	afterFee := amount.Sub(fee)
	if !fixed.IsGood(afterFee) {
		return model.Quote{}, ErrNoLiquidity
	}

	expected := fixed.MulDivFloor(afterFee, reserveOut, reserveIn.Add(afterFee))
	if !fixed.IsGood(expected) || expected.Cmp(reserveOut) >= 0 {
		return model.Quote{}, ErrNoLiquidity
	}

	return model.Quote{
		Spend:       amount,
		Expected:    expected,
		Fee:         fee,
		PriceImpact: priceImpact(afterFee, expected, reserveIn, reserveOut),
	}, nil
}

// Backward quotes a swap with a known desired receive amount: the
// constant-product equation is solved for the pre-fee input, then the fee is
// re-derived on top. Both steps round up (never against the protocol).
func Backward(pool model.Pool, receiveRoot string, amount decimal.Decimal) (model.Quote, error) {
	if amount.Sign() <= 0 {
		return model.Quote{}, ErrInvalidAmount
	}
	if pool.FeeDenominator <= 0 || pool.FeeNumerator < 0 || pool.FeeNumerator >= pool.FeeDenominator {
		return model.Quote{}, fmt.Errorf("invalid fee %d/%d on pool %s", pool.FeeNumerator, pool.FeeDenominator, pool.Address)
	}

	spendRoot, ok := pool.Other(receiveRoot)
	if !ok {
		return model.Quote{}, fmt.Errorf("token %s not in pool %s", receiveRoot, pool.Address)
	}
	reserveIn, reserveOut, err := orient(pool, spendRoot)
	if err != nil {
		return model.Quote{}, err
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return model.Quote{}, ErrNoLiquidity
	}
	// The pool cannot pay out its entire reserve.
	if amount.Cmp(reserveOut) >= 0 {
		return model.Quote{}, ErrNoLiquidity
	}

	feeNum := decimal.NewFromInt(pool.FeeNumerator)
	feeDen := decimal.NewFromInt(pool.FeeDenominator)

	afterFee := fixed.MulDivCeil(reserveIn.Mul(amount), decimal.New(1, 0), reserveOut.Sub(amount))
	spend := fixed.MulDivCeil(afterFee, feeDen, feeDen.Sub(feeNum))
	if !fixed.IsGood(spend) {
		return model.Quote{}, ErrNoLiquidity
	}

	return model.Quote{
		Spend:       spend,
		Expected:    amount,
		Fee:         spend.Sub(afterFee),
		PriceImpact: priceImpact(afterFee, amount, reserveIn, reserveOut),
	}, nil
}

// ApplySlippage returns amount*(100-slippage)/100 rounded down. Slippage must
// sit strictly inside (0, 100); out-of-range values are rejected so callers
// keep their configured default.
func ApplySlippage(amount, slippage decimal.Decimal) (decimal.Decimal, error) {
	if slippage.Sign() <= 0 || slippage.Cmp(fixed.Hundred) >= 0 {
		return decimal.Zero, ErrInvalidSlippage
	}
	return fixed.PercentOfFloor(amount, fixed.Hundred.Sub(slippage)), nil
}

// priceImpact is the relative drop between the pre-trade spot rate and the
// effective execution rate, in percent, rounded up. Bounded below at zero.
func priceImpact(afterFee, expected, reserveIn, reserveOut decimal.Decimal) decimal.Decimal {
	denom := afterFee.Mul(reserveOut)
	if denom.Sign() <= 0 {
		return decimal.Zero
	}
	ratio := expected.Mul(reserveIn).DivRound(denom, 12)
	impact := decimal.New(1, 0).Sub(ratio).Mul(fixed.Hundred).RoundUp(2)
	if impact.Sign() < 0 {
		return decimal.Zero
	}
	return impact
}
