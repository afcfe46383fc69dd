package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swapScope/internal/api"
	"swapScope/internal/chain"
	"swapScope/internal/config"
	"swapScope/internal/model"
	"swapScope/internal/pair"
	"swapScope/internal/storage"
	"swapScope/internal/storage/postgres"
	"swapScope/internal/swap"
)

func main() {
	root := &cobra.Command{
		Use:          "router",
		Short:        "AMM swap quoting and routing engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute the best quote for a token pair",
		RunE:  runQuote,
	}
	addEngineFlags(quoteCmd)
	quoteCmd.Flags().String("from", "", "source token root")
	quoteCmd.Flags().String("to", "", "destination token root")
	quoteCmd.Flags().String("amount", "", "raw amount (spend side unless --receive)")
	quoteCmd.Flags().Bool("receive", false, "treat amount as the desired receive amount")
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Submit a swap and await confirmation",
		RunE:  runSwap,
	}
	addEngineFlags(swapCmd)
	swapCmd.Flags().String("from", "", "source token root")
	swapCmd.Flags().String("to", "", "destination token root")
	swapCmd.Flags().String("amount", "", "raw spend amount")
	root.AddCommand(swapCmd)

	importCmd := &cobra.Command{
		Use:   "import-token",
		Short: "Import a custom token root into local settings",
		RunE:  runImportToken,
	}
	addEngineFlags(importCmd)
	importCmd.Flags().String("root", "", "token root address")
	root.AddCommand(importCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("factory", "", "pair factory contract address")
	cmd.Flags().String("router", "", "swap router contract address")
	cmd.Flags().String("private-key", "", "hex signing key (swap only)")
	cmd.Flags().String("owner", "", "owner account address")
	cmd.Flags().String("api-url", "", "off-chain aggregation API base URL")
	cmd.Flags().String("slippage", "0.5", "slippage tolerance percent")
	cmd.Flags().Int("max-hops", 3, "maximum pools in a route")
	cmd.Flags().String("min-pool-tvl", "50000", "minimum direct-pool TVL in USD")
	cmd.Flags().String("settings", "./data/settings.json", "settings file path")
	cmd.Flags().String("journal", "./data/swaps.jsonl", "swap journal JSONL path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the swap journal")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// engine bundles the wired collaborators behind a session.
type engine struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	cache   *pair.Cache
	session *swap.Session
	journal storage.JournalSink
}

func buildEngine(ctx context.Context, cmd *cobra.Command) (*engine, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.FactoryAddress == "" {
		return nil, fmt.Errorf("factory address is required")
	}

	slippage, err := decimal.NewFromString(cfg.Slippage)
	if err != nil {
		return nil, fmt.Errorf("parse slippage: %w", err)
	}
	minTVL, err := decimal.NewFromString(cfg.MinPoolTVL)
	if err != nil {
		return nil, fmt.Errorf("parse min pool tvl: %w", err)
	}

	// Persisted slippage wins over the flag default when present.
	settingsStore := storage.NewSettingsStore(cfg.SettingsPath)
	if settings, ok, err := settingsStore.Load(); err != nil {
		logger.Warn("load settings", zap.Error(err))
	} else if ok && settings.Slippage != "" {
		if persisted, err := decimal.NewFromString(settings.Slippage); err == nil {
			slippage = persisted
		}
	}

	client, err := chain.NewClient(ctx, chain.Options{
		RPCURL:         cfg.RPCURL,
		FactoryAddress: cfg.FactoryAddress,
		RouterAddress:  cfg.RouterAddress,
		PrivateKeyHex:  cfg.PrivateKey,
		FeeNumerator:   cfg.FeeNumerator,
		FeeDenominator: cfg.FeeDenominator,
		PollInterval:   cfg.PollInterval,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var agg swap.Aggregator
	if cfg.APIBaseURL != "" {
		agg = api.NewClient(cfg.APIBaseURL, logger)
	}

	var journal storage.JournalSink
	if cfg.PGDSN != "" {
		store, err := postgresJournal(ctx, cfg.PGDSN)
		if err != nil {
			client.Close()
			return nil, err
		}
		journal = store
	} else if cfg.JournalPath != "" {
		journal = storage.NewJsonlJournal(cfg.JournalPath)
	}

	owner := cfg.Owner
	if owner == "" {
		owner = client.Sender()
	}

	cache := pair.NewCache(client, logger)
	session := swap.NewSession(swap.Config{
		Owner:           owner,
		Slippage:        slippage,
		MaxHops:         cfg.MaxHops,
		MinPoolTVL:      minTVL,
		ManualRecompute: true,
	}, client, cache, agg, journal, logger)

	return &engine{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		cache:   cache,
		session: session,
		journal: journal,
	}, nil
}

func postgresJournal(ctx context.Context, dsn string) (storage.JournalSink, error) {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, nil
}

func (e *engine) close() {
	e.client.Close()
	_ = e.logger.Sync()
}

func runQuote(cmd *cobra.Command, _ []string) error {
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
	receiveFixed, _ := cmd.Flags().GetBool("receive")

	if from == "" || to == "" || amountRaw == "" {
		return fmt.Errorf("from, to, and amount are required")
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	eng.session.SetTokens(ctx, from, to)
	if receiveFixed {
		eng.session.SetReceiveAmount(ctx, amount)
	} else {
		eng.session.SetSpendAmount(ctx, amount)
	}

	state := eng.session.Recompute(ctx)
	return printQuote(eng.session, state)
}

func printQuote(session *swap.Session, state swap.State) error {
	type output struct {
		State string       `json:"state"`
		Mode  string       `json:"mode,omitempty"`
		Quote *model.Quote `json:"quote,omitempty"`
		Route *model.Route `json:"route,omitempty"`
	}

	out := output{State: state.String()}
	switch state {
	case swap.StateDirectQuoteReady:
		out.Mode = "direct"
		if q, ok := session.Quote(); ok {
			out.Quote = &q
		}
	case swap.StateRouteQuoteReady:
		out.Mode = "cross"
		if r, ok := session.Route(); ok {
			out.Route = &r
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
