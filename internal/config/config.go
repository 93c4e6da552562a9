// Package config loads process-wide configuration the way the teacher's
// pkg/config does: envdecode-tagged structs, a .env file loaded first in
// non-production, with env vars always taking precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ChainConfig controls the RPC connection to the chain this deployment trades on.
type ChainConfig struct {
	RPCURL     string        `env:"RPC_URL"`
	ChainName  string        `env:"CHAIN_NAME,default=solana"`
	RPCTimeout time.Duration `env:"RPC_TIMEOUT,default=10s"`
}

// SignerConfig controls the Signer Gateway's remote signing backend.
type SignerConfig struct {
	AppID       string `env:"SIGNER_APP_ID"`
	BaseURL     string `env:"SIGNER_BASE_URL"`
	APIKey      string `env:"SIGNER_API_KEY"`
	LocalKeyHex string `env:"SIGNER_LOCAL_KEY_HEX"` // platform self-trade only
}

// TradingConfig controls the external AMM/launch-platform HTTP API used for
// swap quoting and fee-claim discovery.
type TradingConfig struct {
	BaseURL string `env:"TRADING_SDK_BASE_URL"`
	APIKey  string `env:"TRADING_SDK_API_KEY"`
}

// DatabaseConfig controls Postgres persistence.
type DatabaseConfig struct {
	DSN            string `env:"DATABASE_URL"`
	MaxOpenConns   int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns   int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	MigrateOnStart bool   `env:"DATABASE_MIGRATE_ON_START,default=true"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// HTTPConfig controls the Admin/Lifecycle/Read API server.
type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST,default=0.0.0.0"`
	Port            int           `env:"HTTP_PORT,default=8080"`
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTExpiry       time.Duration `env:"JWT_EXPIRY,default=24h"`
	BearerTokensRaw string        `env:"HTTP_BEARER_TOKENS"` // comma-separated
	CORSOriginsRaw  string        `env:"HTTP_CORS_ORIGINS"`  // comma-separated, empty = allow all
}

// BearerTokens splits the configured bearer-token set.
func (c HTTPConfig) BearerTokens() []string { return splitCSV(c.BearerTokensRaw) }

// CORSOrigins splits the configured allow-list.
func (c HTTPConfig) CORSOrigins() []string { return splitCSV(c.CORSOriginsRaw) }

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JobsConfig controls the fleet's background job cadence and enable flags,
// mirroring PlatformConfig's admin-mutable fields as env-seeded defaults.
type JobsConfig struct {
	FastClaimEnabled        bool          `env:"FAST_CLAIM_JOB_ENABLED,default=true"`
	MultiUserFlywheelEnabled bool         `env:"MULTI_USER_FLYWHEEL_ENABLED,default=true"`
	DepositMonitorEnabled   bool          `env:"DEPOSIT_MONITOR_ENABLED,default=true"`
	BalanceUpdateEnabled    bool          `env:"BALANCE_UPDATE_JOB_ENABLED,default=true"`
	ClaimJobPeriod          time.Duration `env:"CLAIM_JOB_PERIOD,default=30s"`
	SchedulerPeriod         time.Duration `env:"SCHEDULER_PERIOD,default=1m"`
	DepositMonitorPeriod    time.Duration `env:"DEPOSIT_MONITOR_PERIOD,default=30s"`
	MaxTradesPerMinute      int           `env:"MAX_TRADES_PER_MINUTE,default=30"`
	InterTokenDelay         time.Duration `env:"INTER_TOKEN_DELAY,default=0s"`
	PlatformFeePercentage   float64       `env:"PLATFORM_FEE_PERCENTAGE,default=0.10"`
	FastClaimThreshold      string        `env:"FAST_CLAIM_THRESHOLD,default=0.15"`
	PlatformFastClaimThresh string        `env:"PLATFORM_FAST_CLAIM_THRESHOLD,default=0.05"`
	ReserveAmount           string        `env:"RESERVE_AMOUNT,default=0.1"`
}

// Config is the full process configuration.
type Config struct {
	Env      string `env:"APP_ENV,default=development"`
	Chain    ChainConfig
	Signer   SignerConfig
	Trading  TradingConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Jobs     JobsConfig
}

// Load reads .env (if present, non-production only) then decodes the
// environment into a Config.
func Load() (*Config, error) {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env != "production" {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "no target fields were set") {
			return nil, fmt.Errorf("config: decode env: %w", err)
		}
	}

	if cfg.Env == "production" && len(cfg.HTTP.JWTSecret) < 32 {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least 32 bytes in production")
	}
	if cfg.Env != "production" && cfg.HTTP.JWTSecret == "" {
		cfg.HTTP.JWTSecret = "development-insecure-secret-32-bytes-minimum"
	}

	if err := cfg.validateRequired(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired fails fast on the handful of vars that have no sane
// default: an RPC endpoint, signer credentials, and a database DSN.
func (c *Config) validateRequired() error {
	missing := []string{}
	if c.Chain.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.Signer.AppID == "" {
		missing = append(missing, "SIGNER_APP_ID")
	}
	if c.Signer.BaseURL == "" {
		missing = append(missing, "SIGNER_BASE_URL")
	}
	if c.Signer.APIKey == "" {
		missing = append(missing, "SIGNER_API_KEY")
	}
	if c.Database.DSN == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether this process is configured for production.
func (c *Config) IsProduction() bool { return c.Env == "production" }
