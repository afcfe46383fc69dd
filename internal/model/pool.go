package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pool represents a constant-product pair: an ordered pair of token roots with
// their reserve balances and fee parameters. Reserves are raw (undecimaled)
// integer amounts.
type Pool struct {
	Address        string          `json:"address"`
	LeftRoot       string          `json:"left_root"`
	RightRoot      string          `json:"right_root"`
	LeftReserve    decimal.Decimal `json:"left_reserve"`
	RightReserve   decimal.Decimal `json:"right_reserve"`
	FeeNumerator   int64           `json:"fee_numerator"`
	FeeDenominator int64           `json:"fee_denominator"`
	SyncedAt       int64           `json:"synced_at,omitempty"`
}

// Contains reports whether root is one of the pool's two token roots.
func (p Pool) Contains(root string) bool {
	return sameRoot(p.LeftRoot, root) || sameRoot(p.RightRoot, root)
}

// Other returns the opposite token root for root, and whether root belongs to
// the pool at all.
func (p Pool) Other(root string) (string, bool) {
	switch {
	case sameRoot(p.LeftRoot, root):
		return p.RightRoot, true
	case sameRoot(p.RightRoot, root):
		return p.LeftRoot, true
	default:
		return "", false
	}
}

// HasLiquidity reports whether both reserves are strictly positive.
func (p Pool) HasLiquidity() bool {
	return p.LeftReserve.Sign() > 0 && p.RightReserve.Sign() > 0
}

func sameRoot(a, b string) bool {
	return strings.EqualFold(a, b)
}

// PairKey builds a canonical unordered key for a token pair.
func PairKey(rootA, rootB string) string {
	a := strings.ToLower(rootA)
	b := strings.ToLower(rootB)
	if a > b {
		a, b = b, a
	}
	return a + "/" + b
}
