package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/swap"
)

func runSwap(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer eng.close()

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	amountRaw, _ := cmd.Flags().GetString("amount")

	if from == "" || to == "" || amountRaw == "" {
		return fmt.Errorf("from, to, and amount are required")
	}
	if eng.cfg.RouterAddress == "" {
		return fmt.Errorf("router address is required")
	}
	if eng.cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	eng.session.SetTokens(ctx, from, to)
	eng.session.SetSpendAmount(ctx, amount)

	state := eng.session.Recompute(ctx)
	switch state {
	case swap.StateDirectQuoteReady, swap.StateRouteQuoteReady:
	case swap.StateNoLiquidity:
		return fmt.Errorf("no liquidity for %s -> %s", from, to)
	default:
		return fmt.Errorf("no quote available (state %s)", state)
	}

	if err := eng.session.Submit(ctx); err != nil {
		var submitErr *swap.SubmitError
		if errors.As(err, &submitErr) {
			return fmt.Errorf("ledger rejected the swap: %w", submitErr.Err)
		}
		return err
	}

	eng.logger.Info("swap submitted, awaiting confirmation",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
	)

	select {
	case <-ctx.Done():
		eng.session.Dispose()
		return ctx.Err()
	case result := <-eng.session.Done():
		switch result.Outcome.Status {
		case swap.TrackSettled:
			eng.logger.Info("swap settled",
				zap.String("received", result.Record.Received.String()),
				zap.Uint64("correlation_id", result.Record.CorrelationID),
			)
		case swap.TrackCancelled:
			eng.logger.Warn("swap cancelled mid-route",
				zap.Int("cancelled_hop", result.Record.CancelledHop),
				zap.String("partial_received", result.Record.Received.String()),
			)
		default:
			return fmt.Errorf("swap confirmation aborted")
		}
	}

	return nil
}
