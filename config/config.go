package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ChainConfig describes one of the two bridged chains.
type ChainConfig struct {
	ChainID      int64
	RPCUrl       string
	NativeSymbol string
}

// Config holds the application configuration
type Config struct {
	Environment string // "mainnet" or "testnet"

	RootChain  ChainConfig
	ChildChain ChainConfig

	BridgeAPIUrl    string
	HistoryAPIUrl   string
	ScreeningAPIUrl string
	PricingAPIUrl   string

	PrivateKey string

	QuoteRefreshInterval   time.Duration
	BalanceRefreshInterval time.Duration
	HistoryCacheTTL        time.Duration

	// ScreeningFailOpen controls what happens when the sanctions check
	// itself fails: true treats the wallet as clean, false blocks it.
	ScreeningFailOpen bool

	// WithdrawalDataFailOpen controls whether a failed withdrawal-data
	// fetch is shown as "not ready yet" (true) or surfaced as an
	// error (false). The next poll tick retries either way.
	WithdrawalDataFailOpen bool

	LogLevel    string
	LogEncoding string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".bridgectl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("environment", "testnet")
	viper.SetDefault("root_chain.chain_id", 11155111)
	viper.SetDefault("root_chain.rpc_url", "https://rpc.sepolia.org")
	viper.SetDefault("root_chain.native_symbol", "ETH")
	viper.SetDefault("child_chain.chain_id", 13473)
	viper.SetDefault("child_chain.rpc_url", "https://rpc.testnet.immutable.com")
	viper.SetDefault("child_chain.native_symbol", "IMX")
	viper.SetDefault("quote_refresh_interval", "30s")
	viper.SetDefault("balance_refresh_interval", "10s")
	viper.SetDefault("history_cache_ttl", "60s")
	viper.SetDefault("screening_fail_open", false)
	viper.SetDefault("withdrawal_data_fail_open", true)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_encoding", "console")

	// Read from environment variables
	viper.SetEnvPrefix("BRIDGECTL")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Environment: viper.GetString("environment"),
		RootChain: ChainConfig{
			ChainID:      viper.GetInt64("root_chain.chain_id"),
			RPCUrl:       viper.GetString("root_chain.rpc_url"),
			NativeSymbol: viper.GetString("root_chain.native_symbol"),
		},
		ChildChain: ChainConfig{
			ChainID:      viper.GetInt64("child_chain.chain_id"),
			RPCUrl:       viper.GetString("child_chain.rpc_url"),
			NativeSymbol: viper.GetString("child_chain.native_symbol"),
		},
		BridgeAPIUrl:           viper.GetString("bridge_api_url"),
		HistoryAPIUrl:          viper.GetString("history_api_url"),
		ScreeningAPIUrl:        viper.GetString("screening_api_url"),
		PricingAPIUrl:          viper.GetString("pricing_api_url"),
		PrivateKey:             viper.GetString("private_key"),
		QuoteRefreshInterval:   viper.GetDuration("quote_refresh_interval"),
		BalanceRefreshInterval: viper.GetDuration("balance_refresh_interval"),
		HistoryCacheTTL:        viper.GetDuration("history_cache_ttl"),
		ScreeningFailOpen:      viper.GetBool("screening_fail_open"),
		WithdrawalDataFailOpen: viper.GetBool("withdrawal_data_fail_open"),
		LogLevel:               viper.GetString("log_level"),
		LogEncoding:            viper.GetString("log_encoding"),
	}

	if cfg.RootChain.RPCUrl == "" || cfg.ChildChain.RPCUrl == "" {
		return nil, fmt.Errorf("both root_chain.rpc_url and child_chain.rpc_url must be configured")
	}
	if cfg.RootChain.ChainID == cfg.ChildChain.ChainID {
		return nil, fmt.Errorf("root and child chains must have distinct chain ids")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
