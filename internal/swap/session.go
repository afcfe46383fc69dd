// Package swap owns the quote session lifecycle: input tracking, coalesced
// recomputation, direct-vs-cross mode selection, submission, and confirmation
// tracking.
package swap

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapScope/internal/api"
	"swapScope/internal/ledger"
	"swapScope/internal/model"
	"swapScope/internal/pair"
	"swapScope/internal/quote"
	"swapScope/internal/route"
	"swapScope/internal/storage"
)

// State is the session's position in the quote/swap lifecycle.
type State int

const (
	StateIdle State = iota
	StatePreparingPool
	StateDirectQuoteReady
	StateRouteQuoteReady
	StateNoLiquidity
	StateSubmitting
	StateAwaitingConfirmation
	StateSettled
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparingPool:
		return "preparing_pool"
	case StateDirectQuoteReady:
		return "direct_quote_ready"
	case StateRouteQuoteReady:
		return "route_quote_ready"
	case StateNoLiquidity:
		return "no_liquidity"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode selects how the swap executes.
type Mode int

const (
	ModeDirect Mode = iota
	ModeCross
)

// SubmitError is the typed failure surfaced when the ledger rejects a
// transfer. All other failure classes degrade to absent quotes instead.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit swap: %v", e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// ErrBusy rejects a submit while a previous swap is still in flight.
var ErrBusy = errors.New("swap already in progress")

// ErrNotReady rejects a submit without a ready quote.
var ErrNotReady = errors.New("no quote ready")

// Aggregator is the off-chain data the session consumes: pool TVL and route
// candidates.
type Aggregator interface {
	PoolTVL(ctx context.Context, pool string) (decimal.Decimal, error)
	CrossPairs(ctx context.Context, req api.CrossPairsRequest) ([]model.Pool, error)
}

// Input is the user-controlled quote request.
type Input struct {
	FromRoot  string
	ToRoot    string
	Amount    decimal.Decimal
	Direction route.Direction
	Slippage  decimal.Decimal
}

// Config holds session policy knobs.
type Config struct {
	Owner      string
	Slippage   decimal.Decimal
	MaxHops    int
	MinPoolTVL decimal.Decimal

	// ManualRecompute disables the automatic recompute on every edit; callers
	// then drive Recompute themselves. One-shot CLI use.
	ManualRecompute bool
}

// Result is the terminal report of a submitted swap.
type Result struct {
	Record  model.SwapRecord
	Outcome Outcome
}

// Session drives one quote/swap lifecycle. All mutating methods are safe for
// concurrent use; recomputation is single-flight with the latest input taking
// precedence.
type Session struct {
	cfg     Config
	ledger  ledger.Client
	cache   *pair.Cache
	agg     Aggregator
	journal storage.JournalSink
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	input       Input
	queued      *Input
	version     uint64
	recomputing bool
	pending     bool

	directPool  *model.Pool
	directQuote *model.Quote
	routeQuote  *model.Route
	mode        Mode

	tracker *Tracker
	done    chan Result
}

// NewSession wires a session from its collaborators. journal and agg may be
// nil; the session then skips journaling and cross-pair discovery.
func NewSession(cfg Config, ledgerClient ledger.Client, cache *pair.Cache, agg Aggregator, journal storage.JournalSink, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = route.DefaultMaxHops
	}
	return &Session{
		cfg:     cfg,
		ledger:  ledgerClient,
		cache:   cache,
		agg:     agg,
		journal: journal,
		logger:  logger,
		state:   StateIdle,
		input:   Input{Slippage: cfg.Slippage},
		done:    make(chan Result, 1),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsSwapping reports whether a submitted swap is still unsettled. Callers must
// check this before allowing new edits; edits that arrive anyway are queued.
func (s *Session) IsSwapping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSwappingLocked()
}

func (s *Session) isSwappingLocked() bool {
	return s.state == StateSubmitting || s.state == StateAwaitingConfirmation
}

// Quote returns the active direct quote, if any.
func (s *Session) Quote() (model.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.directQuote == nil {
		return model.Quote{}, false
	}
	return *s.directQuote, true
}

// Route returns the active cross-pair route, if any.
func (s *Session) Route() (model.Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routeQuote == nil {
		return model.Route{}, false
	}
	return *s.routeQuote, true
}

// Mode returns the execution mode chosen by the last recompute.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Done delivers the terminal result of a submitted swap.
func (s *Session) Done() <-chan Result {
	return s.done
}

// SetTokens selects the source and destination tokens and triggers
// recomputation once both are set.
func (s *Session) SetTokens(ctx context.Context, fromRoot, toRoot string) {
	s.edit(ctx, func(in *Input) {
		in.FromRoot = fromRoot
		in.ToRoot = toRoot
	})
}

// SetSpendAmount fixes the amount on the source side.
func (s *Session) SetSpendAmount(ctx context.Context, amount decimal.Decimal) {
	s.edit(ctx, func(in *Input) {
		in.Amount = amount
		in.Direction = route.SpendFixed
	})
}

// SetReceiveAmount fixes the desired amount on the destination side.
func (s *Session) SetReceiveAmount(ctx context.Context, amount decimal.Decimal) {
	s.edit(ctx, func(in *Input) {
		in.Amount = amount
		in.Direction = route.ReceiveFixed
	})
}

// SetSlippage overrides the slippage tolerance. Invalid values keep the
// current setting.
func (s *Session) SetSlippage(ctx context.Context, slippage decimal.Decimal) {
	if slippage.Sign() <= 0 || slippage.Cmp(decimal.NewFromInt(100)) >= 0 {
		return
	}
	s.edit(ctx, func(in *Input) {
		in.Slippage = slippage
	})
}

// ToggleDirection swaps the source and destination tokens.
func (s *Session) ToggleDirection(ctx context.Context) {
	s.edit(ctx, func(in *Input) {
		in.FromRoot, in.ToRoot = in.ToRoot, in.FromRoot
	})
}

// Clean clears the last quote results and returns the session to idle.
func (s *Session) Clean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSwappingLocked() {
		return
	}
	s.version++
	s.directPool = nil
	s.directQuote = nil
	s.routeQuote = nil
	s.state = StateIdle
}

// edit applies a mutation. While a swap is in flight the change is queued, not
// applied, and lands after settlement.
func (s *Session) edit(ctx context.Context, apply func(*Input)) {
	s.mu.Lock()
	if s.isSwappingLocked() {
		if s.queued == nil {
			snapshot := s.input
			s.queued = &snapshot
		}
		apply(s.queued)
		s.mu.Unlock()
		return
	}
	apply(&s.input)
	s.version++
	ready := s.input.FromRoot != "" && s.input.ToRoot != "" && s.input.FromRoot != s.input.ToRoot
	if ready {
		s.state = StatePreparingPool
	} else {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if ready && !s.cfg.ManualRecompute {
		s.triggerRecompute(ctx)
	}
}

// Recompute runs one synchronous recompute for the current input and returns
// the resulting state.
func (s *Session) Recompute(ctx context.Context) State {
	s.mu.Lock()
	in := s.input
	version := s.version
	s.mu.Unlock()

	s.recomputeOnce(ctx, in, version)
	return s.State()
}

// triggerRecompute starts the single-flight recompute loop. A recompute
// already running is not restarted; the latest input is honored by the next
// pass of the loop.
func (s *Session) triggerRecompute(ctx context.Context) {
	s.mu.Lock()
	if s.recomputing {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.recomputing = true
	s.mu.Unlock()

	go func() {
		for {
			s.mu.Lock()
			in := s.input
			version := s.version
			s.mu.Unlock()

			s.recomputeOnce(ctx, in, version)

			s.mu.Lock()
			if s.pending {
				s.pending = false
				s.mu.Unlock()
				continue
			}
			s.recomputing = false
			s.mu.Unlock()
			return
		}
	}()
}

// recomputeOnce performs one full recompute for a captured input, then applies
// the result only if the input is still current. Every failure class except
// submission degrades to absent values.
func (s *Session) recomputeOnce(ctx context.Context, in Input, version uint64) {
	var (
		directPool  *model.Pool
		directQuote *model.Quote
		directTVL   *decimal.Decimal
		routeQuote  *model.Route
	)

	if in.Amount.Sign() > 0 {
		directPool, directQuote = s.computeDirect(ctx, in)
		if directPool != nil {
			directTVL = s.fetchTVL(ctx, directPool.Address)
		}
		routeQuote = s.discoverRoute(ctx, in, directPool)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version != s.version || s.isSwappingLocked() {
		// Stale result for an input the user has already moved past.
		return
	}

	s.directPool = directPool
	s.directQuote = directQuote
	s.routeQuote = routeQuote
	if in.Amount.Sign() <= 0 {
		// Tokens chosen but no amount entered yet is not "no liquidity".
		if in.FromRoot != "" && in.ToRoot != "" {
			s.state = StatePreparingPool
		}
		return
	}
	s.mode, s.state = selectMode(directPool, directQuote, directTVL, routeQuote, s.cfg.MinPoolTVL)
}

// selectMode applies the deterministic direct-vs-cross rule: prefer the
// direct pool unless it does not exist, or its liquidity sits below the TVL
// threshold while a viable route exists. When both are marginal, direct wins.
func selectMode(directPool *model.Pool, directQuote *model.Quote, directTVL *decimal.Decimal, routeQuote *model.Route, minTVL decimal.Decimal) (Mode, State) {
	routeOK := routeQuote != nil && len(routeQuote.Hops) > 0

	if directQuote == nil {
		if routeOK {
			return ModeCross, StateRouteQuoteReady
		}
		return ModeDirect, StateNoLiquidity
	}

	sufficient := true
	if directTVL != nil && minTVL.Sign() > 0 && directTVL.Cmp(minTVL) < 0 {
		sufficient = false
	}
	if directPool != nil && !directPool.HasLiquidity() {
		sufficient = false
	}

	if !sufficient && routeOK {
		return ModeCross, StateRouteQuoteReady
	}
	return ModeDirect, StateDirectQuoteReady
}

func (s *Session) computeDirect(ctx context.Context, in Input) (*model.Pool, *model.Quote) {
	pool, err := s.cache.ResolvePool(ctx, in.FromRoot, in.ToRoot)
	if err != nil {
		if !errors.Is(err, pair.ErrNotFound) {
			s.logger.Warn("resolve direct pool", zap.Error(err))
		}
		return nil, nil
	}

	refreshed, err := s.cache.RefreshReserves(ctx, pool.Address)
	if err != nil {
		s.logger.Warn("refresh direct pool", zap.String("pool", pool.Address), zap.Error(err))
		return &pool, nil
	}
	pool = refreshed

	q, err := s.quoteDirect(pool, in)
	if err != nil {
		if !errors.Is(err, quote.ErrNoLiquidity) && !errors.Is(err, quote.ErrInvalidAmount) {
			s.logger.Warn("direct quote", zap.String("pool", pool.Address), zap.Error(err))
		}
		return &pool, nil
	}
	return &pool, &q
}

func (s *Session) quoteDirect(pool model.Pool, in Input) (model.Quote, error) {
	var (
		q   model.Quote
		err error
	)
	if in.Direction == route.ReceiveFixed {
		q, err = quote.Backward(pool, in.ToRoot, in.Amount)
	} else {
		q, err = quote.Forward(pool, in.FromRoot, in.Amount)
	}
	if err != nil {
		return model.Quote{}, err
	}

	minExpected, err := quote.ApplySlippage(q.Expected, s.slippage(in))
	if err != nil {
		return model.Quote{}, err
	}
	q.MinExpected = minExpected
	return q, nil
}

func (s *Session) fetchTVL(ctx context.Context, poolAddr string) *decimal.Decimal {
	if s.agg == nil {
		return nil
	}
	tvl, err := s.agg.PoolTVL(ctx, poolAddr)
	if err != nil {
		// Unknown TVL never disqualifies the direct pool.
		s.logger.Debug("pool tvl unavailable", zap.String("pool", poolAddr), zap.Error(err))
		return nil
	}
	return &tvl
}

// discoverRoute asks the aggregation API for candidate pools and evaluates
// multi-hop routes. A single-hop route through the direct pool is not a cross
// route and is dropped.
func (s *Session) discoverRoute(ctx context.Context, in Input, directPool *model.Pool) *model.Route {
	if s.agg == nil {
		return nil
	}

	direction := "spend"
	if in.Direction == route.ReceiveFixed {
		direction = "receive"
	}
	pools, err := s.agg.CrossPairs(ctx, api.CrossPairsRequest{
		FromRoot:  in.FromRoot,
		ToRoot:    in.ToRoot,
		Amount:    in.Amount.String(),
		Direction: direction,
		MinTVL:    s.cfg.MinPoolTVL.String(),
		MaxHops:   s.cfg.MaxHops,
	})
	if err != nil {
		s.logger.Warn("cross pairs fetch", zap.Error(err))
		return nil
	}
	if len(pools) == 0 {
		return nil
	}

	found, err := route.Discover(route.Request{
		FromRoot:  in.FromRoot,
		ToRoot:    in.ToRoot,
		Amount:    in.Amount,
		Direction: in.Direction,
		Slippage:  s.slippage(in),
		Pools:     pools,
		MaxHops:   s.cfg.MaxHops,
	})
	if err != nil {
		if !errors.Is(err, route.ErrNoRoute) {
			s.logger.Warn("route discovery", zap.Error(err))
		}
		return nil
	}
	if len(found.Hops) == 1 && directPool != nil && found.Hops[0].Pool.Address == directPool.Address {
		return nil
	}
	return &found
}

func (s *Session) slippage(in Input) decimal.Decimal {
	if in.Slippage.Sign() > 0 {
		return in.Slippage
	}
	return s.cfg.Slippage
}

// Submit dispatches the selected quote as a transfer with the hop plan and
// correlation ids attached, registers the confirmation tracker, and returns
// without waiting for settlement. Submission failures return *SubmitError;
// everything later arrives through Done.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.isSwappingLocked() {
		s.mu.Unlock()
		return ErrBusy
	}

	var steps []ledger.SwapStep
	var planRoots []string
	switch {
	case s.state == StateDirectQuoteReady && s.directQuote != nil && s.directPool != nil:
		id, err := correlationID()
		if err != nil {
			s.mu.Unlock()
			return &SubmitError{Err: err}
		}
		steps = []ledger.SwapStep{{
			CorrelationID: id,
			Pool:          s.directPool.Address,
			FromRoot:      s.input.FromRoot,
			ToRoot:        s.input.ToRoot,
			Spend:         s.directQuote.Spend,
			MinReceive:    s.directQuote.MinExpected,
		}}
		planRoots = []string{s.input.FromRoot, s.input.ToRoot}
	case s.state == StateRouteQuoteReady && s.routeQuote != nil:
		for _, hop := range s.routeQuote.Hops {
			id, err := correlationID()
			if err != nil {
				s.mu.Unlock()
				return &SubmitError{Err: err}
			}
			steps = append(steps, ledger.SwapStep{
				CorrelationID: id,
				Pool:          hop.Pool.Address,
				FromRoot:      hop.FromRoot,
				ToRoot:        hop.ToRoot,
				Spend:         hop.Quote.Spend,
				MinReceive:    hop.Quote.MinExpected,
			})
		}
		planRoots = s.routeQuote.Tokens()
	default:
		s.mu.Unlock()
		return ErrNotReady
	}

	in := s.input
	s.state = StateSubmitting
	s.mu.Unlock()

	events, dispose, err := s.ledger.SubscribeEvents(ctx, s.cfg.Owner)
	if err != nil {
		s.fail(err)
		return &SubmitError{Err: err}
	}

	if _, err := s.ledger.SendTransfer(ctx, ledger.TransferRequest{Owner: s.cfg.Owner, Steps: steps}); err != nil {
		dispose()
		s.fail(err)
		return &SubmitError{Err: err}
	}

	ids := make([]uint64, len(steps))
	for i, step := range steps {
		ids[i] = step.CorrelationID
	}
	tracker := NewTracker(ids, events, dispose)

	s.mu.Lock()
	s.state = StateAwaitingConfirmation
	s.tracker = tracker
	s.mu.Unlock()

	go tracker.Run(ctx)
	go s.awaitOutcome(ctx, tracker, in, steps, planRoots, time.Now().Unix())

	return nil
}

func (s *Session) awaitOutcome(ctx context.Context, tracker *Tracker, in Input, steps []ledger.SwapStep, planRoots []string, submittedAt int64) {
	outcome := <-tracker.Done()

	record := model.SwapRecord{
		CorrelationID: steps[0].CorrelationID,
		Owner:         s.cfg.Owner,
		FromRoot:      in.FromRoot,
		ToRoot:        in.ToRoot,
		Route:         planRoots,
		Spent:         steps[0].Spend,
		SubmittedAt:   submittedAt,
		SettledAt:     time.Now().Unix(),
	}
	for _, hop := range outcome.Hops {
		record.Received = hop.Received
	}

	var next State
	switch outcome.Status {
	case TrackSettled:
		record.Status = model.SwapStatusSettled
		next = StateSettled
	case TrackCancelled:
		record.Status = model.SwapStatusCancelled
		record.CancelledHop = outcome.CancelledHop
		next = StateCancelled
	default:
		record.Status = model.SwapStatusFailed
		next = StateFailed
	}

	if s.journal != nil {
		if err := s.journal.PutSwapBatch([]model.SwapRecord{record}); err != nil {
			s.logger.Warn("journal swap", zap.Error(err))
		}
	}

	// Refresh the pools the swap touched; stale reserves risk stale quotes.
	for _, step := range steps {
		if _, err := s.cache.RefreshReserves(ctx, step.Pool); err != nil {
			s.logger.Debug("post-swap refresh", zap.String("pool", step.Pool), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.state = next
	s.tracker = nil
	queued := s.queued
	s.queued = nil
	if queued != nil {
		s.input = *queued
		s.version++
		if s.input.FromRoot != "" && s.input.ToRoot != "" {
			s.state = StatePreparingPool
		}
	}
	s.mu.Unlock()

	s.done <- Result{Record: record, Outcome: outcome}

	if queued != nil && !s.cfg.ManualRecompute {
		s.triggerRecompute(ctx)
	}
}

func (s *Session) fail(err error) {
	s.logger.Warn("swap submission failed", zap.Error(err))
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
}

// Dispose tears down an in-flight tracker, if any.
func (s *Session) Dispose() {
	s.mu.Lock()
	tracker := s.tracker
	s.tracker = nil
	s.mu.Unlock()
	if tracker != nil {
		tracker.Dispose()
	}
}

func correlationID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("correlation id: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
