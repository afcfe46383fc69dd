// Package route discovers and evaluates multi-hop swap paths across a
// candidate set of pools.
package route

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"swapScope/internal/fixed"
	"swapScope/internal/model"
	"swapScope/internal/quote"
)

// ErrNoRoute means no path through the candidate pools could produce a viable
// quote. A path with even one dead hop is discarded entirely.
var ErrNoRoute = errors.New("no viable route")

// Direction selects which end of the swap carries the known amount.
type Direction int

const (
	// SpendFixed quotes forward from a known spend amount at the source.
	SpendFixed Direction = iota
	// ReceiveFixed quotes backward from a desired amount at the destination.
	ReceiveFixed
)

// DefaultMaxHops bounds a path at three pools.
const DefaultMaxHops = 3

// Request describes one discovery run over a fixed pool snapshot.
type Request struct {
	FromRoot  string
	ToRoot    string
	Amount    decimal.Decimal
	Direction Direction
	Slippage  decimal.Decimal
	Pools     []model.Pool
	MaxHops   int
}

// Discover enumerates all simple paths (no repeated token) from FromRoot to
// ToRoot through the candidate pools, evaluates each hop-by-hop, and returns
// the best: highest expected receive for SpendFixed, lowest required spend for
// ReceiveFixed. Ties prefer fewer hops. Discovery over identical pool state is
// deterministic.
func Discover(req Request) (model.Route, error) {
	if req.Amount.Sign() <= 0 {
		return model.Route{}, quote.ErrInvalidAmount
	}
	if strings.EqualFold(req.FromRoot, req.ToRoot) {
		return model.Route{}, ErrNoRoute
	}
	maxHops := req.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	graph := buildGraph(req.Pools)
	paths := graph.simplePaths(req.FromRoot, req.ToRoot, maxHops)

	var best *model.Route
	for _, path := range paths {
		candidate, err := evaluate(path, req)
		if err != nil {
			// A dead hop kills the whole path, never a partial route.
			continue
		}
		if best == nil || better(candidate, *best, req.Direction) {
			r := candidate
			best = &r
		}
	}
	if best == nil {
		return model.Route{}, ErrNoRoute
	}
	return *best, nil
}

// CompoundSlippage returns the effective route-level tolerance for hop count
// n: 100 - 100*(1 - s/100)^n. Equal to s at one hop, strictly increasing with
// n, and the resulting minimum never exceeds the single-hop minimum.
func CompoundSlippage(s decimal.Decimal, hops int) decimal.Decimal {
	if hops <= 1 {
		return s
	}
	keep := fixed.Hundred.Sub(s).DivRound(fixed.Hundred, 16)
	kept := keep.Pow(decimal.NewFromInt(int64(hops)))
	return fixed.Hundred.Sub(kept.Mul(fixed.Hundred)).RoundUp(8)
}

type edge struct {
	pool model.Pool
	to   string
}

type graph struct {
	adjacency map[string][]edge
}

func buildGraph(pools []model.Pool) graph {
	g := graph{adjacency: make(map[string][]edge)}
	for _, pool := range pools {
		left := strings.ToLower(pool.LeftRoot)
		right := strings.ToLower(pool.RightRoot)
		if left == "" || right == "" || left == right {
			continue
		}
		g.adjacency[left] = append(g.adjacency[left], edge{pool: pool, to: right})
		g.adjacency[right] = append(g.adjacency[right], edge{pool: pool, to: left})
	}
	// Stable traversal order keeps discovery deterministic.
	for root := range g.adjacency {
		edges := g.adjacency[root]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].to != edges[j].to {
				return edges[i].to < edges[j].to
			}
			return edges[i].pool.Address < edges[j].pool.Address
		})
	}
	return g
}

type pathHop struct {
	pool model.Pool
	from string
	to   string
}

func (g graph) simplePaths(from, to string, maxHops int) [][]pathHop {
	from = strings.ToLower(from)
	to = strings.ToLower(to)

	var out [][]pathHop
	visited := map[string]bool{from: true}
	var current []pathHop

	var walk func(node string)
	walk = func(node string) {
		for _, e := range g.adjacency[node] {
			if visited[e.to] {
				continue
			}
			current = append(current, pathHop{pool: e.pool, from: node, to: e.to})
			if e.to == to {
				path := make([]pathHop, len(current))
				copy(path, current)
				out = append(out, path)
			} else if len(current) < maxHops {
				visited[e.to] = true
				walk(e.to)
				delete(visited, e.to)
			}
			current = current[:len(current)-1]
		}
	}
	walk(from)
	return out
}

func evaluate(path []pathHop, req Request) (model.Route, error) {
	switch req.Direction {
	case ReceiveFixed:
		return evaluateBackward(path, req)
	default:
		return evaluateForward(path, req)
	}
}

func evaluateForward(path []pathHop, req Request) (model.Route, error) {
	hops := make([]model.RouteHop, 0, len(path))
	amount := req.Amount
	for _, hop := range path {
		q, err := quote.Forward(hop.pool, hop.from, amount)
		if err != nil {
			return model.Route{}, err
		}
		hops = append(hops, model.RouteHop{Pool: hop.pool, FromRoot: hop.from, ToRoot: hop.to, Quote: q})
		amount = q.Expected
	}
	return finalize(hops, req)
}

func evaluateBackward(path []pathHop, req Request) (model.Route, error) {
	hops := make([]model.RouteHop, len(path))
	amount := req.Amount
	for i := len(path) - 1; i >= 0; i-- {
		hop := path[i]
		q, err := quote.Backward(hop.pool, hop.to, amount)
		if err != nil {
			return model.Route{}, err
		}
		hops[i] = model.RouteHop{Pool: hop.pool, FromRoot: hop.from, ToRoot: hop.to, Quote: q}
		amount = q.Spend
	}
	return finalize(hops, req)
}

// finalize fills per-hop minimums under the compounded tolerance and builds
// the aggregate bill.
func finalize(hops []model.RouteHop, req Request) (model.Route, error) {
	effective := CompoundSlippage(req.Slippage, len(hops))

	totalFee := decimal.Zero
	totalImpact := decimal.Zero
	for i := range hops {
		minExpected, err := quote.ApplySlippage(hops[i].Quote.Expected, effective)
		if err != nil {
			return model.Route{}, err
		}
		hops[i].Quote.MinExpected = minExpected
		totalFee = totalFee.Add(hops[i].Quote.Fee)
		totalImpact = totalImpact.Add(hops[i].Quote.PriceImpact)
	}

	last := hops[len(hops)-1].Quote
	minExpected, err := quote.ApplySlippage(last.Expected, effective)
	if err != nil {
		return model.Route{}, err
	}

	return model.Route{
		Hops: hops,
		Bill: model.Quote{
			Spend:       hops[0].Quote.Spend,
			Expected:    last.Expected,
			MinExpected: minExpected,
			Fee:         totalFee,
			PriceImpact: totalImpact,
		},
		Slippage: effective,
	}, nil
}

func better(candidate, incumbent model.Route, direction Direction) bool {
	var cmp int
	if direction == ReceiveFixed {
		// Lower required spend wins.
		cmp = incumbent.Bill.Spend.Cmp(candidate.Bill.Spend)
	} else {
		// Higher expected receive wins.
		cmp = candidate.Bill.Expected.Cmp(incumbent.Bill.Expected)
	}
	if cmp != 0 {
		return cmp > 0
	}
	return len(candidate.Hops) < len(incumbent.Hops)
}
