package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/storage"
)

func runImportToken(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer eng.close()

	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		return fmt.Errorf("token root is required")
	}

	token, err := eng.client.TokenMeta(ctx, root)
	if err != nil {
		return fmt.Errorf("fetch token metadata: %w", err)
	}

	store := storage.NewSettingsStore(eng.cfg.SettingsPath)
	if err := store.ImportToken(token); err != nil {
		return fmt.Errorf("persist imported token: %w", err)
	}

	eng.logger.Info("token imported",
		zap.String("root", token.Root),
		zap.String("symbol", token.Symbol),
		zap.Uint8("decimals", token.Decimals),
	)
	return nil
}
