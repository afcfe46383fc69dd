package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	FactoryAddress string
	RouterAddress  string
	PrivateKey     string
	Owner          string
	APIBaseURL     string
	Slippage       string
	MaxHops        int
	MinPoolTVL     string
	FeeNumerator   int64
	FeeDenominator int64
	SettingsPath   string
	JournalPath    string
	PGDSN          string
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("slippage", "0.5")
	v.SetDefault("max-hops", 3)
	v.SetDefault("min-pool-tvl", "50000")
	v.SetDefault("fee-numerator", int64(3))
	v.SetDefault("fee-denominator", int64(1000))
	v.SetDefault("settings", "./data/settings.json")
	v.SetDefault("journal", "./data/swaps.jsonl")
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		FactoryAddress: v.GetString("factory"),
		RouterAddress:  v.GetString("router"),
		PrivateKey:     v.GetString("private-key"),
		Owner:          v.GetString("owner"),
		APIBaseURL:     v.GetString("api-url"),
		Slippage:       v.GetString("slippage"),
		MaxHops:        v.GetInt("max-hops"),
		MinPoolTVL:     v.GetString("min-pool-tvl"),
		FeeNumerator:   v.GetInt64("fee-numerator"),
		FeeDenominator: v.GetInt64("fee-denominator"),
		SettingsPath:   v.GetString("settings"),
		JournalPath:    v.GetString("journal"),
		PGDSN:          v.GetString("pg-dsn"),
		PollInterval:   v.GetDuration("poll-interval"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
