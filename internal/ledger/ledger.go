// Package ledger declares the provider boundary: everything the engine needs
// from the chain is consumed through these interfaces so the quoting and
// routing logic never depends on a concrete SDK.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"swapScope/internal/model"
)

var (
	// ErrNotDeployed means the contract behind an address has no state yet.
	// Callers treat it as "no liquidity", not a failure.
	ErrNotDeployed = errors.New("contract not deployed")

	// ErrPoolNotFound means no pool exists on-chain for a token pair.
	ErrPoolNotFound = errors.New("pool not found")
)

// PoolState is a snapshot of a pool contract's own storage: canonical root
// ordering, raw reserve balances, and fee parameters.
type PoolState struct {
	LeftRoot       string
	RightRoot      string
	LeftBalance    decimal.Decimal
	RightBalance   decimal.Decimal
	FeeNumerator   int64
	FeeDenominator int64
}

// StateReader resolves and reads on-chain state.
type StateReader interface {
	// ResolvePool returns the pool address for an unordered token pair, or
	// ErrPoolNotFound.
	ResolvePool(ctx context.Context, rootA, rootB string) (string, error)

	// PoolState fetches the pool's current roots, reserves, and fee. Returns
	// ErrNotDeployed when the pool contract has no state.
	PoolState(ctx context.Context, pool string) (PoolState, error)

	// TokenMeta fetches symbol, name, and decimals for a token root.
	TokenMeta(ctx context.Context, root string) (model.Token, error)

	// TokenWallet resolves the owner's wallet address for a token root.
	TokenWallet(ctx context.Context, root, owner string) (string, error)

	// WalletBalance fetches the raw balance held by a token wallet.
	WalletBalance(ctx context.Context, wallet string) (decimal.Decimal, error)
}

// SwapStep is one hop of the plan attached to an outgoing transfer. The
// correlation id lets the confirmation stream be matched back to this hop.
type SwapStep struct {
	CorrelationID uint64
	Pool          string
	FromRoot      string
	ToRoot        string
	Spend         decimal.Decimal
	MinReceive    decimal.Decimal
}

// TransferRequest is a token transfer carrying the full hop plan as payload.
type TransferRequest struct {
	Owner string
	Steps []SwapStep
}

// Transferor submits transfers to the ledger. Submission does not wait for
// confirmation; callers track outcomes through a Stream subscription.
type Transferor interface {
	SendTransfer(ctx context.Context, req TransferRequest) (txHash string, err error)
}

// EventKind classifies decoded confirmation events.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventCancelled
)

// Event is a decoded confirmation observed on the ledger for one hop.
type Event struct {
	CorrelationID uint64
	Kind          EventKind
	Spent         decimal.Decimal
	Received      decimal.Decimal
}

// Stream subscribes to confirmation events for an account. The channel merges
// not-yet-seen historical events with live ones in observation order. The
// returned dispose func must be called when the subscriber is done; after
// dispose the channel is closed.
type Stream interface {
	SubscribeEvents(ctx context.Context, owner string) (<-chan Event, func(), error)
}

// Client bundles the full provider surface.
type Client interface {
	StateReader
	Transferor
	Stream
}
