package model

import "github.com/shopspring/decimal"

// RouteHop is one leg of a multi-hop swap: the pool it runs through, its
// orientation, and the per-hop bill.
type RouteHop struct {
	Pool     Pool   `json:"pool"`
	FromRoot string `json:"from_root"`
	ToRoot   string `json:"to_root"`
	Quote    Quote  `json:"quote"`
}

// Route is an ordered chain of hops where hop i's output token is hop i+1's
// input token and no token repeats. Bill aggregates the whole chain; Slippage
// is the compounded per-route tolerance actually applied.
type Route struct {
	Hops     []RouteHop      `json:"hops"`
	Bill     Quote           `json:"bill"`
	Slippage decimal.Decimal `json:"slippage"`
}

// Tokens returns the token roots along the route, source first.
func (r Route) Tokens() []string {
	if len(r.Hops) == 0 {
		return nil
	}
	roots := make([]string, 0, len(r.Hops)+1)
	roots = append(roots, r.Hops[0].FromRoot)
	for _, hop := range r.Hops {
		roots = append(roots, hop.ToRoot)
	}
	return roots
}
