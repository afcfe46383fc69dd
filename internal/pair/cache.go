// Package pair maintains the shared pool/token state cache over the ledger
// boundary.
package pair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapScope/internal/ledger"
	"swapScope/internal/model"
)

// ErrNotFound means no pool exists on-chain for the requested pair.
var ErrNotFound = errors.New("pair not found")

// DefaultBalanceMaxAge is the best-effort staleness bound for balance syncs.
const DefaultBalanceMaxAge = 60 * time.Second

// Cache holds pool and token state shared by concurrent quote calculations.
// Field writes are idempotent and convergent: later fetches overwrite with
// fresher data, so per-field atomicity is enough.
type Cache struct {
	reader ledger.StateReader
	logger *zap.Logger

	mu     sync.RWMutex
	pools  map[string]model.Pool // by pool address
	byPair map[string]string     // canonical pair key -> pool address
	tokens map[string]model.Token

	// walletMu serializes wallet resolution per (root, owner) so concurrent
	// callers never create duplicate subscriptions.
	walletMu keyedMutex

	balanceMaxAge time.Duration
	now           func() time.Time
}

// NewCache builds a cache over the given state reader.
func NewCache(reader ledger.StateReader, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		reader:        reader,
		logger:        logger,
		pools:         make(map[string]model.Pool),
		byPair:        make(map[string]string),
		tokens:        make(map[string]model.Token),
		balanceMaxAge: DefaultBalanceMaxAge,
		now:           time.Now,
	}
}

// ResolvePool returns the cached or freshly resolved pool for an unordered
// token pair. Returns ErrNotFound when no pool exists on-chain.
func (c *Cache) ResolvePool(ctx context.Context, rootA, rootB string) (model.Pool, error) {
	key := model.PairKey(rootA, rootB)

	c.mu.RLock()
	if addr, ok := c.byPair[key]; ok {
		pool := c.pools[addr]
		c.mu.RUnlock()
		return pool, nil
	}
	c.mu.RUnlock()

	addr, err := c.reader.ResolvePool(ctx, rootA, rootB)
	if err != nil {
		if errors.Is(err, ledger.ErrPoolNotFound) {
			return model.Pool{}, ErrNotFound
		}
		return model.Pool{}, fmt.Errorf("resolve pool %s: %w", key, err)
	}

	pool := model.Pool{Address: addr, LeftRoot: rootA, RightRoot: rootB}

	c.mu.Lock()
	c.byPair[key] = addr
	if existing, ok := c.pools[addr]; ok {
		pool = existing
	} else {
		c.pools[addr] = pool
	}
	c.mu.Unlock()

	return pool, nil
}

// RefreshReserves re-fetches reserves and fee parameters for a pool. An
// undeployed pool contract is normal "no liquidity": reserves come back zero
// and no error is returned. The cache inverts balances when its own left/right
// orientation is opposite the pool's.
func (c *Cache) RefreshReserves(ctx context.Context, poolAddr string) (model.Pool, error) {
	state, err := c.reader.PoolState(ctx, poolAddr)
	if err != nil {
		if errors.Is(err, ledger.ErrNotDeployed) {
			c.logger.Debug("pool not deployed", zap.String("pool", poolAddr))
			return c.storeReserves(poolAddr, ledger.PoolState{}), nil
		}
		return model.Pool{}, fmt.Errorf("refresh reserves %s: %w", poolAddr, err)
	}
	return c.storeReserves(poolAddr, state), nil
}

func (c *Cache) storeReserves(poolAddr string, state ledger.PoolState) model.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[poolAddr]
	if !ok {
		pool = model.Pool{Address: poolAddr}
	}
	if pool.LeftRoot == "" {
		pool.LeftRoot = state.LeftRoot
		pool.RightRoot = state.RightRoot
	}

	left, right := state.LeftBalance, state.RightBalance
	if state.LeftRoot != "" && !equalRoot(pool.LeftRoot, state.LeftRoot) {
		left, right = right, left
	}
	pool.LeftReserve = left
	pool.RightReserve = right
	if state.FeeDenominator > 0 {
		pool.FeeNumerator = state.FeeNumerator
		pool.FeeDenominator = state.FeeDenominator
	}
	pool.SyncedAt = c.now().Unix()

	c.pools[poolAddr] = pool
	return pool
}

// RefreshRoots re-fetches the pool's canonical left/right ordering and
// realigns the cached reserves if the cache had them inverted.
func (c *Cache) RefreshRoots(ctx context.Context, poolAddr string) (left, right string, err error) {
	state, err := c.reader.PoolState(ctx, poolAddr)
	if err != nil {
		return "", "", fmt.Errorf("refresh roots %s: %w", poolAddr, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[poolAddr]
	if !ok {
		pool = model.Pool{Address: poolAddr}
	}
	if pool.LeftRoot != "" && !equalRoot(pool.LeftRoot, state.LeftRoot) {
		pool.LeftReserve, pool.RightReserve = pool.RightReserve, pool.LeftReserve
	}
	pool.LeftRoot = state.LeftRoot
	pool.RightRoot = state.RightRoot
	c.pools[poolAddr] = pool

	return state.LeftRoot, state.RightRoot, nil
}

// Pool returns the cached pool state for an address.
func (c *Cache) Pool(poolAddr string) (model.Pool, bool) {
	c.mu.RLock()
	pool, ok := c.pools[poolAddr]
	c.mu.RUnlock()
	return pool, ok
}

// Token returns the cached token for a root.
func (c *Cache) Token(root string) (model.Token, bool) {
	c.mu.RLock()
	token, ok := c.tokens[root]
	c.mu.RUnlock()
	return token, ok
}

// PutToken stores or overwrites token metadata.
func (c *Cache) PutToken(token model.Token) {
	c.mu.Lock()
	c.tokens[token.Root] = token
	c.mu.Unlock()
}

// TokenWallet resolves the owner's wallet for a token root, serializing
// concurrent resolutions of the same (root, owner) pair.
func (c *Cache) TokenWallet(ctx context.Context, root, owner string) (string, error) {
	key := root + "|" + owner

	unlock := c.walletMu.lock(key)
	defer unlock()

	c.mu.RLock()
	token, ok := c.tokens[root]
	c.mu.RUnlock()
	if ok && token.Wallet != "" {
		return token.Wallet, nil
	}

	wallet, err := c.reader.TokenWallet(ctx, root, owner)
	if err != nil {
		return "", fmt.Errorf("resolve token wallet %s: %w", root, err)
	}

	c.mu.Lock()
	token = c.tokens[root]
	token.Root = root
	token.Wallet = wallet
	c.tokens[root] = token
	c.mu.Unlock()

	return wallet, nil
}

// SyncBalance refreshes the owner's balance for a token root unless the cached
// value is fresh enough. Fetch failures degrade to the stale value.
func (c *Cache) SyncBalance(ctx context.Context, root, owner string) (decimal.Decimal, error) {
	c.mu.RLock()
	token, ok := c.tokens[root]
	c.mu.RUnlock()

	if ok && token.SyncedAt > 0 {
		age := c.now().Sub(time.Unix(token.SyncedAt, 0))
		if age < c.balanceMaxAge {
			return token.Balance, nil
		}
	}

	wallet, err := c.TokenWallet(ctx, root, owner)
	if err != nil {
		return token.Balance, err
	}

	balance, err := c.reader.WalletBalance(ctx, wallet)
	if err != nil {
		c.logger.Warn("balance sync failed", zap.String("root", root), zap.Error(err))
		return token.Balance, err
	}

	c.mu.Lock()
	token = c.tokens[root]
	token.Root = root
	token.Wallet = wallet
	token.Balance = balance
	token.SyncedAt = c.now().Unix()
	c.tokens[root] = token
	c.mu.Unlock()

	return balance, nil
}

func equalRoot(a, b string) bool {
	return strings.EqualFold(a, b)
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
