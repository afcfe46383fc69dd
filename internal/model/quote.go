package model

import "github.com/shopspring/decimal"

// Quote is the bill for a single swap: spend amount, expected receive amount,
// fee taken from the input side, the slippage-adjusted minimum the sender will
// accept, and price impact in percent. MinExpected never exceeds Expected and
// PriceImpact is never negative.
type Quote struct {
	Spend       decimal.Decimal `json:"spend"`
	Expected    decimal.Decimal `json:"expected"`
	MinExpected decimal.Decimal `json:"min_expected"`
	Fee         decimal.Decimal `json:"fee"`
	PriceImpact decimal.Decimal `json:"price_impact"`
}
