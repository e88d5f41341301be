package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/efreitasn/finance/internal/domain"
)

// Config holds all runtime configuration for the finance service.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// StoreDriver is one of memory, sqlite or pgx.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:finance.db"`

	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	InitialCashDollars float64 `env:"INITIAL_CASH" envDefault:"10000"`
	AllowExactCost     bool    `env:"ALLOW_EXACT_COST" envDefault:"false"`

	// Without an API key quotes come from the built-in static table.
	APIKey          string        `env:"API_KEY"`
	QuoteURL        string        `env:"QUOTE_URL" envDefault:"https://cloud.iexapis.com/stable/stock/{symbol}/quote?token={token}"`
	QuoteNamePath   string        `env:"QUOTE_NAME_PATH" envDefault:"$.companyName"`
	QuotePricePath  string        `env:"QUOTE_PRICE_PATH" envDefault:"$.latestPrice"`
	QuoteSymbolPath string        `env:"QUOTE_SYMBOL_PATH" envDefault:"$.symbol"`
	QuoteTimeout    time.Duration `env:"QUOTE_TIMEOUT" envDefault:"5s"`
	QuoteCacheTTL   time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"15s"`
	RedisAddr       string        `env:"REDIS_ADDR"`

	// Derived values.
	InitialCash     int64 `env:"-"`
	EphemeralSecret bool  `env:"-"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Variables set to the empty string count as unset.
// It returns an error for any invalid value.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, env.Options{Environment: nonEmptyEnv()}); err != nil {
		return nil, err
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", cfg.Port)
	}
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	for name, d := range map[string]time.Duration{
		"READ_TIMEOUT":     cfg.ReadTimeout,
		"WRITE_TIMEOUT":    cfg.WriteTimeout,
		"IDLE_TIMEOUT":     cfg.IdleTimeout,
		"SHUTDOWN_TIMEOUT": cfg.ShutdownTimeout,
		"SESSION_TTL":      cfg.SessionTTL,
		"QUOTE_TIMEOUT":    cfg.QuoteTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: %v, must be positive", name, d)
		}
	}
	if cfg.QuoteCacheTTL < 0 {
		return nil, fmt.Errorf("invalid QUOTE_CACHE_TTL: %v, must not be negative", cfg.QuoteCacheTTL)
	}

	switch cfg.StoreDriver {
	case "memory", "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q, must be one of: memory, sqlite, pgx", cfg.StoreDriver)
	}

	if cfg.InitialCashDollars < 0 {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %v, must be >= 0", cfg.InitialCashDollars)
	}
	cents, err := domain.DollarsToCents(cfg.InitialCashDollars)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	cfg.InitialCash = cents

	if cfg.APIKey != "" && !strings.Contains(cfg.QuoteURL, "{symbol}") {
		return nil, fmt.Errorf("invalid QUOTE_URL: %q, must contain {symbol}", cfg.QuoteURL)
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate JWT_SECRET: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.EphemeralSecret = true
	}

	return cfg, nil
}

func nonEmptyEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && v != "" {
			out[k] = v
		}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
