package pair

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swapScope/internal/ledger"
	"swapScope/internal/model"
)

type fakeReader struct {
	mu          sync.Mutex
	pools       map[string]string
	states      map[string]ledger.PoolState
	wallets     map[string]string
	balances    map[string]decimal.Decimal
	walletCalls int32
	stateCalls  int32
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		pools:    make(map[string]string),
		states:   make(map[string]ledger.PoolState),
		wallets:  make(map[string]string),
		balances: make(map[string]decimal.Decimal),
	}
}

func (f *fakeReader) ResolvePool(ctx context.Context, rootA, rootB string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr, ok := f.pools[model.PairKey(rootA, rootB)]
	if !ok {
		return "", ledger.ErrPoolNotFound
	}
	return addr, nil
}

func (f *fakeReader) PoolState(ctx context.Context, pool string) (ledger.PoolState, error) {
	atomic.AddInt32(&f.stateCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[pool]
	if !ok {
		return ledger.PoolState{}, ledger.ErrNotDeployed
	}
	return state, nil
}

func (f *fakeReader) TokenMeta(ctx context.Context, root string) (model.Token, error) {
	return model.Token{Root: root}, nil
}

func (f *fakeReader) TokenWallet(ctx context.Context, root, owner string) (string, error) {
	atomic.AddInt32(&f.walletCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[root+"|"+owner]
	if !ok {
		return "", errors.New("no wallet")
	}
	return wallet, nil
}

func (f *fakeReader) WalletBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[wallet]
	if !ok {
		return decimal.Decimal{}, errors.New("no balance")
	}
	return balance, nil
}

func TestResolvePoolCaches(t *testing.T) {
	reader := newFakeReader()
	reader.pools[model.PairKey("token-a", "token-b")] = "0:pool-ab"
	cache := NewCache(reader, nil)
	ctx := context.Background()

	pool, err := cache.ResolvePool(ctx, "token-a", "token-b")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pool.Address != "0:pool-ab" {
		t.Fatalf("wrong address %s", pool.Address)
	}

	// Second resolve with the pair flipped hits the cache, same pool.
	again, err := cache.ResolvePool(ctx, "token-b", "token-a")
	if err != nil {
		t.Fatalf("resolve flipped: %v", err)
	}
	if again.Address != pool.Address {
		t.Fatalf("flipped pair resolved to %s", again.Address)
	}
}

func TestResolvePoolNotFound(t *testing.T) {
	cache := NewCache(newFakeReader(), nil)
	if _, err := cache.ResolvePool(context.Background(), "token-a", "token-b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshReservesKeepsOrientation(t *testing.T) {
	reader := newFakeReader()
	reader.pools[model.PairKey("token-b", "token-a")] = "0:pool-ab"
	reader.states["0:pool-ab"] = ledger.PoolState{
		LeftRoot:       "token-a",
		RightRoot:      "token-b",
		LeftBalance:    decimal.NewFromInt(1000),
		RightBalance:   decimal.NewFromInt(2000),
		FeeNumerator:   3,
		FeeDenominator: 1000,
	}
	cache := NewCache(reader, nil)
	ctx := context.Background()

	// Resolving with roots reversed seeds the cache in b/a order; the refresh
	// must invert the fetched balances to match.
	if _, err := cache.ResolvePool(ctx, "token-b", "token-a"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pool, err := cache.RefreshReserves(ctx, "0:pool-ab")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pool.LeftRoot != "token-b" {
		t.Fatalf("cache reordered roots to %s", pool.LeftRoot)
	}
	if got := pool.LeftReserve.String(); got != "2000" {
		t.Fatalf("left reserve %s, want inverted 2000", got)
	}
	if got := pool.RightReserve.String(); got != "1000" {
		t.Fatalf("right reserve %s, want inverted 1000", got)
	}
	if pool.FeeNumerator != 3 || pool.FeeDenominator != 1000 {
		t.Fatalf("fee not stored: %d/%d", pool.FeeNumerator, pool.FeeDenominator)
	}
}

func TestRefreshReservesUndeployed(t *testing.T) {
	reader := newFakeReader()
	cache := NewCache(reader, nil)

	pool, err := cache.RefreshReserves(context.Background(), "0:pool-gone")
	if err != nil {
		t.Fatalf("undeployed pool is not an error: %v", err)
	}
	if pool.HasLiquidity() {
		t.Fatal("undeployed pool must report zero reserves")
	}
}

func TestRefreshRootsRealignsReserves(t *testing.T) {
	reader := newFakeReader()
	reader.pools[model.PairKey("token-b", "token-a")] = "0:pool-ab"
	reader.states["0:pool-ab"] = ledger.PoolState{
		LeftRoot:     "token-a",
		RightRoot:    "token-b",
		LeftBalance:  decimal.NewFromInt(1000),
		RightBalance: decimal.NewFromInt(2000),
	}
	cache := NewCache(reader, nil)
	ctx := context.Background()

	if _, err := cache.ResolvePool(ctx, "token-b", "token-a"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := cache.RefreshReserves(ctx, "0:pool-ab"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	left, right, err := cache.RefreshRoots(ctx, "0:pool-ab")
	if err != nil {
		t.Fatalf("refresh roots: %v", err)
	}
	if left != "token-a" || right != "token-b" {
		t.Fatalf("canonical order %s/%s", left, right)
	}
	pool, ok := cache.Pool("0:pool-ab")
	if !ok {
		t.Fatal("pool missing from cache")
	}
	// After realignment the reserves sit on the canonical sides again.
	if got := pool.LeftReserve.String(); got != "1000" {
		t.Fatalf("left reserve %s after realign, want 1000", got)
	}
}

func TestTokenWalletResolvesOnce(t *testing.T) {
	reader := newFakeReader()
	reader.wallets["token-a|0:owner"] = "0:wallet-a"
	cache := NewCache(reader, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wallet, err := cache.TokenWallet(ctx, "token-a", "0:owner")
			if err != nil || wallet != "0:wallet-a" {
				t.Errorf("wallet %q err %v", wallet, err)
			}
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&reader.walletCalls); calls != 1 {
		t.Fatalf("expected a single wallet resolution, got %d", calls)
	}
}

func TestSyncBalanceStaleness(t *testing.T) {
	reader := newFakeReader()
	reader.wallets["token-a|0:owner"] = "0:wallet-a"
	reader.balances["0:wallet-a"] = decimal.NewFromInt(500)
	cache := NewCache(reader, nil)
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return clock }

	balance, err := cache.SyncBalance(ctx, "token-a", "0:owner")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := balance.String(); got != "500" {
		t.Fatalf("balance %s, want 500", got)
	}

	// A fresh cached value short-circuits the fetch.
	reader.mu.Lock()
	reader.balances["0:wallet-a"] = decimal.NewFromInt(900)
	reader.mu.Unlock()
	balance, err = cache.SyncBalance(ctx, "token-a", "0:owner")
	if err != nil {
		t.Fatalf("sync cached: %v", err)
	}
	if got := balance.String(); got != "500" {
		t.Fatalf("expected cached 500, got %s", got)
	}

	// Past the staleness bound the balance is re-fetched.
	clock = clock.Add(DefaultBalanceMaxAge + time.Second)
	balance, err = cache.SyncBalance(ctx, "token-a", "0:owner")
	if err != nil {
		t.Fatalf("sync stale: %v", err)
	}
	if got := balance.String(); got != "900" {
		t.Fatalf("expected refreshed 900, got %s", got)
	}
}

func TestPutToken(t *testing.T) {
	cache := NewCache(newFakeReader(), nil)
	cache.PutToken(model.Token{Root: "token-a", Symbol: "AAA", Decimals: 9})

	token, ok := cache.Token("token-a")
	if !ok || token.Symbol != "AAA" {
		t.Fatalf("token not stored: %+v", token)
	}
}
