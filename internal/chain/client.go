// Package chain is the go-ethereum-backed ledger adapter: it implements the
// provider boundary over rpc/ethclient with ABI-described contract reads,
// signed transfer submission, and a polled merged event stream.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapScope/internal/ledger"
	"swapScope/internal/model"
)

// Options configures the adapter.
type Options struct {
	RPCURL         string
	FactoryAddress string
	RouterAddress  string
	// PrivateKeyHex signs outgoing transfers. Optional for read-only use.
	PrivateKeyHex string
	// FeeNumerator/FeeDenominator are the exchange-wide fee parameters the
	// pair contracts charge on the input side.
	FeeNumerator   int64
	FeeDenominator int64
	// PollInterval paces the event stream; LookbackBlocks bounds how far back
	// the historical merge starts.
	PollInterval   time.Duration
	LookbackBlocks uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	GasLimit       uint64
}

// Client implements ledger.Client over go-ethereum.
type Client struct {
	opts      Options
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	logger    *zap.Logger

	factory common.Address
	router  common.Address
	key     *ecdsa.PrivateKey
	sender  common.Address
	chainID *big.Int
}

var _ ledger.Client = (*Client)(nil)

// NewClient dials the RPC endpoint and prepares the adapter.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FeeDenominator <= 0 {
		opts.FeeNumerator = 3
		opts.FeeDenominator = 1000
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = 600_000
	}

	rpcClient, err := rpc.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:      opts,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		logger:    logger,
		factory:   common.HexToAddress(opts.FactoryAddress),
		router:    common.HexToAddress(opts.RouterAddress),
	}

	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	c.chainID = chainID

	if opts.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKeyHex, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.key = key
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Sender returns the address derived from the configured signing key.
func (c *Client) Sender() string {
	return c.sender.Hex()
}

// ResolvePool looks the pair address up on the factory. A zero pair address
// means no pool exists for the pair.
func (c *Client) ResolvePool(ctx context.Context, rootA, rootB string) (string, error) {
	if !common.IsHexAddress(rootA) || !common.IsHexAddress(rootB) {
		return "", fmt.Errorf("invalid token root %q/%q", rootA, rootB)
	}

	factoryABI, err := factoryABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse factory abi: %w", err)
	}

	values, err := c.call(ctx, c.factory, factoryABI, "getPair", common.HexToAddress(rootA), common.HexToAddress(rootB))
	if err != nil {
		return "", err
	}
	pairAddr, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("getPair unexpected type %T", values[0])
	}
	if pairAddr == (common.Address{}) {
		return "", ledger.ErrPoolNotFound
	}
	return pairAddr.Hex(), nil
}

// PoolState reads the pair's canonical roots, reserves, and fee. A pair whose
// contract has no code yet comes back as ErrNotDeployed.
func (c *Client) PoolState(ctx context.Context, pool string) (ledger.PoolState, error) {
	if !common.IsHexAddress(pool) {
		return ledger.PoolState{}, fmt.Errorf("invalid pool address %q", pool)
	}
	addr := common.HexToAddress(pool)

	code, err := c.ethClient.CodeAt(ctx, addr, nil)
	if err != nil {
		return ledger.PoolState{}, fmt.Errorf("code at %s: %w", pool, err)
	}
	if len(code) == 0 {
		return ledger.PoolState{}, ledger.ErrNotDeployed
	}

	pairABI, err := pairABIInstance()
	if err != nil {
		return ledger.PoolState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := c.call(ctx, addr, pairABI, "token0")
	if err != nil {
		return ledger.PoolState{}, err
	}
	token0, ok := values[0].(common.Address)
	if !ok {
		return ledger.PoolState{}, fmt.Errorf("token0 unexpected type %T", values[0])
	}

	values, err = c.call(ctx, addr, pairABI, "token1")
	if err != nil {
		return ledger.PoolState{}, err
	}
	token1, ok := values[0].(common.Address)
	if !ok {
		return ledger.PoolState{}, fmt.Errorf("token1 unexpected type %T", values[0])
	}

	values, err = c.call(ctx, addr, pairABI, "getReserves")
	if err != nil {
		return ledger.PoolState{}, err
	}
	if len(values) < 2 {
		return ledger.PoolState{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return ledger.PoolState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return ledger.PoolState{}, fmt.Errorf("reserve1: %w", err)
	}

	return ledger.PoolState{
		LeftRoot:       token0.Hex(),
		RightRoot:      token1.Hex(),
		LeftBalance:    decimal.NewFromBigInt(reserve0, 0),
		RightBalance:   decimal.NewFromBigInt(reserve1, 0),
		FeeNumerator:   c.opts.FeeNumerator,
		FeeDenominator: c.opts.FeeDenominator,
	}, nil
}

// TokenMeta loads symbol, name, and decimals for a token root.
func (c *Client) TokenMeta(ctx context.Context, root string) (model.Token, error) {
	if !common.IsHexAddress(root) {
		return model.Token{}, fmt.Errorf("invalid token root %q", root)
	}
	addr := common.HexToAddress(root)

	erc20, err := erc20ABIInstance()
	if err != nil {
		return model.Token{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	token := model.Token{Root: addr.Hex()}

	values, err := c.call(ctx, addr, erc20, "decimals")
	if err != nil {
		return model.Token{}, err
	}
	if decimals, ok := values[0].(uint8); ok {
		token.Decimals = decimals
	}

	if values, err = c.call(ctx, addr, erc20, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			token.Symbol = symbol
		}
	}
	if values, err = c.call(ctx, addr, erc20, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			token.Name = name
		}
	}

	return token, nil
}

// TokenWallet returns the adapter's wallet handle for (root, owner). The
// backend keys balances by owner account, so the handle is a composite.
func (c *Client) TokenWallet(_ context.Context, root, owner string) (string, error) {
	if !common.IsHexAddress(root) {
		return "", fmt.Errorf("invalid token root %q", root)
	}
	if !common.IsHexAddress(owner) {
		return "", fmt.Errorf("invalid owner %q", owner)
	}
	return common.HexToAddress(root).Hex() + ":" + common.HexToAddress(owner).Hex(), nil
}

// WalletBalance fetches balanceOf(owner) on the wallet handle's token root.
func (c *Client) WalletBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	root, owner, ok := strings.Cut(wallet, ":")
	if !ok || !common.IsHexAddress(root) || !common.IsHexAddress(owner) {
		return decimal.Zero, fmt.Errorf("invalid wallet handle %q", wallet)
	}

	erc20, err := erc20ABIInstance()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := c.call(ctx, common.HexToAddress(root), erc20, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	return decimal.NewFromBigInt(balance, 0), nil
}

// call packs, executes, and unpacks a read-only contract method with bounded
// retries.
func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &to, Data: data}
	var resp []byte
	err = withRetry(ctx, c.opts.MaxRetries, c.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		resp, err = c.ethClient.CallContract(ctx, msg, nil)
		if err != nil {
			c.logger.Warn("contract call failed", zap.String("method", method), zap.String("to", to.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(resp) == 0 {
		return nil, ledger.ErrNotDeployed
	}

	values, err := contractABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	b, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return b, nil
}
