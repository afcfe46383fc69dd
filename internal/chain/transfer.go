package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapScope/internal/ledger"
)

// routerStep mirrors the router ABI tuple.
type routerStep struct {
	CallId       uint64         `abi:"callId"`
	Pool         common.Address `abi:"pool"`
	FromToken    common.Address `abi:"fromToken"`
	AmountIn     *big.Int       `abi:"amountIn"`
	MinAmountOut *big.Int       `abi:"minAmountOut"`
}

// SendTransfer signs and submits a router transaction carrying the full hop
// plan with per-hop correlation ids in its calldata.
func (c *Client) SendTransfer(ctx context.Context, req ledger.TransferRequest) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("no signing key configured")
	}
	if len(req.Steps) == 0 {
		return "", fmt.Errorf("transfer has no steps")
	}

	routerABI, err := routerABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse router abi: %w", err)
	}

	steps := make([]routerStep, 0, len(req.Steps))
	for _, step := range req.Steps {
		if !common.IsHexAddress(step.Pool) || !common.IsHexAddress(step.FromRoot) {
			return "", fmt.Errorf("invalid step addresses %q/%q", step.Pool, step.FromRoot)
		}
		steps = append(steps, routerStep{
			CallId:       step.CorrelationID,
			Pool:         common.HexToAddress(step.Pool),
			FromToken:    common.HexToAddress(step.FromRoot),
			AmountIn:     step.Spend.BigInt(),
			MinAmountOut: step.MinReceive.BigInt(),
		})
	}

	data, err := routerABI.Pack("executeRoute", steps)
	if err != nil {
		return "", fmt.Errorf("pack executeRoute: %w", err)
	}

	nonce, err := c.ethClient.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.router, big.NewInt(0), c.opts.GasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	if err := c.ethClient.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}

	c.logger.Info("transfer submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.Int("steps", len(req.Steps)),
		zap.Uint64("first_call_id", req.Steps[0].CorrelationID),
	)
	return signed.Hash().Hex(), nil
}
