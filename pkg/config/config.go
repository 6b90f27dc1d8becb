package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ChainConfig holds the connection and contract details for one of the two
// bridged EVM chains (spec §6 "ethereum.*"/"mantle.* generalized to chain
// A / B").
type ChainConfig struct {
	RPCURL            string
	WSURL             string // optional
	PrivateKey        string
	IntentPoolAddress string
	SettlementAddress string
	ChainID           int64

	// TokenAddresses maps a recognized token symbol (spec §4.7) to its
	// on-chain address for this chain; populated from a "SYMBOL=0x...,..."
	// env var the same way SolverConfig's amount maps are parsed.
	TokenAddresses map[string]string
}

// SolverConfig holds the solver engine's capital and risk-gating knobs
// (spec §6 "Solver:").
type SolverConfig struct {
	MaxCapitalPerFill          map[string]int64 // token symbol -> max amount (smallest unit)
	MinCapitalReserve          map[string]int64
	MaxConcurrentFills         int
	MinProfitBps               int
	SourceConfirmationsRequired int
	MaxIntentAgeSecs           int
	MaxGasPriceGwei            int64
	PriorityFeeGwei            int64
	HealthCheckIntervalSecs    int
	BalanceCheckIntervalSecs   int
}

// Config holds all configuration for the intent bridge relayer.
type Config struct {
	// Server Configuration — HTTP surface for the event webhook and admin
	// queries (external collaborator; only the listen address is owned
	// here).
	ServerHost       string
	ServerPort       int
	ServerHMACSecret string

	// Database Configuration
	DatabaseURL      string
	DatabaseMaxConns int

	// Chain Configuration
	ChainA ChainConfig
	ChainB ChainConfig

	// Relayer identity
	RelayerAddress         string
	FeeCollector           string
	RelayerECIESPrivateKey string // decrypts privacy params on the claim path (spec §4.5)

	// Solver
	Solver SolverConfig

	// Worker timings (spec §6 "Worker timings")
	RegistrationPoll time.Duration
	SettlementPoll   time.Duration
	RootSyncInterval time.Duration
	RootSyncTimeout  time.Duration
	TxTimeout        time.Duration
	TreeDepth        int

	LogLevel string
}

// Load reads configuration from environment variables. Required
// connection and key material have no defaults and must be explicitly
// set; call Validate() after Load() before starting the service.
func Load() (*Config, error) {
	cfg := &Config{
		ServerHost:       getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:       getEnvInt("SERVER_PORT", 8080),
		ServerHMACSecret: getEnv("SERVER_HMAC_SECRET", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),

		ChainA: ChainConfig{
			RPCURL:            getEnv("ETHEREUM_RPC_URL", ""),
			WSURL:             getEnv("ETHEREUM_WS_URL", ""),
			PrivateKey:        getEnv("ETHEREUM_PRIVATE_KEY", ""),
			IntentPoolAddress: getEnv("ETHEREUM_INTENT_POOL_ADDRESS", ""),
			SettlementAddress: getEnv("ETHEREUM_SETTLEMENT_ADDRESS", ""),
			ChainID:           getEnvInt64("ETHEREUM_CHAIN_ID", 1),
			TokenAddresses:    parseTokenAddressMap(getEnv("ETHEREUM_TOKEN_ADDRESSES", "")),
		},
		ChainB: ChainConfig{
			RPCURL:            getEnv("MANTLE_RPC_URL", ""),
			WSURL:             getEnv("MANTLE_WS_URL", ""),
			PrivateKey:        getEnv("MANTLE_PRIVATE_KEY", ""),
			IntentPoolAddress: getEnv("MANTLE_INTENT_POOL_ADDRESS", ""),
			SettlementAddress: getEnv("MANTLE_SETTLEMENT_ADDRESS", ""),
			ChainID:           getEnvInt64("MANTLE_CHAIN_ID", 5000),
			TokenAddresses:    parseTokenAddressMap(getEnv("MANTLE_TOKEN_ADDRESSES", "")),
		},

		RelayerAddress:         getEnv("RELAYER_ADDRESS", ""),
		FeeCollector:           getEnv("FEE_COLLECTOR", ""),
		RelayerECIESPrivateKey: getEnv("RELAYER_ECIES_PRIVATE_KEY", ""),

		Solver: SolverConfig{
			MaxCapitalPerFill:           parseTokenAmountMap(getEnv("SOLVER_MAX_CAPITAL_PER_FILL", "")),
			MinCapitalReserve:           parseTokenAmountMap(getEnv("SOLVER_MIN_CAPITAL_RESERVE", "")),
			MaxConcurrentFills:          getEnvInt("SOLVER_MAX_CONCURRENT_FILLS", 5),
			MinProfitBps:                getEnvInt("SOLVER_MIN_PROFIT_BPS", 10),
			SourceConfirmationsRequired: getEnvInt("SOLVER_SOURCE_CONFIRMATIONS_REQUIRED", 2),
			MaxIntentAgeSecs:            getEnvInt("SOLVER_MAX_INTENT_AGE_SECS", 3600),
			MaxGasPriceGwei:             getEnvInt64("SOLVER_MAX_GAS_PRICE_GWEI", 100),
			PriorityFeeGwei:             getEnvInt64("SOLVER_PRIORITY_FEE_GWEI", 2),
			HealthCheckIntervalSecs:     getEnvInt("SOLVER_HEALTH_CHECK_INTERVAL_SECS", 30),
			BalanceCheckIntervalSecs:    getEnvInt("SOLVER_BALANCE_CHECK_INTERVAL_SECS", 30),
		},

		RegistrationPoll: getEnvDuration("REGISTRATION_POLL", 10*time.Second),
		SettlementPoll:   getEnvDuration("SETTLEMENT_POLL", 15*time.Second),
		RootSyncInterval: getEnvDuration("ROOT_SYNC_INTERVAL", 180*time.Second),
		RootSyncTimeout:  getEnvDuration("ROOT_SYNC_TIMEOUT", 120*time.Second),
		TxTimeout:        getEnvDuration("TX_TIMEOUT", 120*time.Second),
		TreeDepth:        getEnvInt("TREE_DEPTH", 20),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present. This must
// be called after Load() before starting the service; a failure here is
// the config-error exit path (spec §6 exit code 1).
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if c.ChainA.RPCURL == "" {
		errs = append(errs, "ETHEREUM_RPC_URL is required but not set")
	}
	if c.ChainA.PrivateKey == "" {
		errs = append(errs, "ETHEREUM_PRIVATE_KEY is required but not set")
	}
	if c.ChainA.IntentPoolAddress == "" || c.ChainA.SettlementAddress == "" {
		errs = append(errs, "ETHEREUM_INTENT_POOL_ADDRESS and ETHEREUM_SETTLEMENT_ADDRESS are required")
	}
	if c.ChainB.RPCURL == "" {
		errs = append(errs, "MANTLE_RPC_URL is required but not set")
	}
	if c.ChainB.PrivateKey == "" {
		errs = append(errs, "MANTLE_PRIVATE_KEY is required but not set")
	}
	if c.ChainB.IntentPoolAddress == "" || c.ChainB.SettlementAddress == "" {
		errs = append(errs, "MANTLE_INTENT_POOL_ADDRESS and MANTLE_SETTLEMENT_ADDRESS are required")
	}
	if c.RelayerAddress == "" {
		errs = append(errs, "RELAYER_ADDRESS is required but not set")
	}
	if c.RelayerECIESPrivateKey == "" {
		errs = append(errs, "RELAYER_ECIES_PRIVATE_KEY is required but not set")
	}
	if c.TreeDepth <= 0 {
		errs = append(errs, "TREE_DEPTH must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseTokenAddressMap parses a comma-separated "SYMBOL=0xaddr" list, e.g.
// "USDC=0x1234...,WETH=0xabcd...".
func parseTokenAddressMap(value string) map[string]string {
	out := make(map[string]string)
	if value == "" {
		return out
	}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}

// parseTokenAmountMap parses a comma-separated "SYMBOL=amount" list, e.g.
// "ETH=5000000000000000000,USDC=50000000000".
func parseTokenAmountMap(value string) map[string]int64 {
	out := make(map[string]int64)
	if value == "" {
		return out
	}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(parts[0])] = amount
	}
	return out
}
