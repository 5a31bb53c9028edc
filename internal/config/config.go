// Package config loads the client session configuration.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"github.com/thep2p/go-web3-core/internal/model"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WEB3_"

const (
	DefaultDialTimeout       = 10 * time.Second
	DefaultRetryAttempts     = 5
	DefaultRetryBackoff      = 250 * time.Millisecond
	DefaultCacheSize         = 256
	DefaultReceiptTimeout    = 120 * time.Second
	DefaultGasBuffer         = 100_000
	DefaultGasPriceStrategy  = "network"
	DefaultSampleBlocks      = 20
	DefaultPercentile        = 50
	DefaultPollInterval      = time.Second
	DefaultDeliveryBuffer    = 16
	DefaultRateLimitBurstMin = 1
)

// Load reads the YAML file at path, applies WEB3_* environment overrides,
// fills defaults and validates the result.
//
// An empty path skips the file; the configuration then comes from the
// environment and defaults only.
func Load(ctx context.Context, path string) (*model.Config, error) {
	return LoadWithLookuper(ctx, path, envconfig.OsLookuper())
}

// LoadWithLookuper is Load with a custom environment source.
func LoadWithLookuper(ctx context.Context, path string, lookuper envconfig.Lookuper) (*model.Config, error) {
	var cfg model.Config

	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, lookuper),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults sets every unset field to its default.
func ApplyDefaults(cfg *model.Config) {
	if cfg.Provider.DialTimeout == 0 {
		cfg.Provider.DialTimeout = DefaultDialTimeout
	}

	if cfg.Middleware.Retry.Attempts == 0 {
		cfg.Middleware.Retry.Attempts = DefaultRetryAttempts
	}
	if cfg.Middleware.Retry.Backoff == 0 {
		cfg.Middleware.Retry.Backoff = DefaultRetryBackoff
	}
	if cfg.Middleware.RateLimit.RPS > 0 && cfg.Middleware.RateLimit.Burst == 0 {
		cfg.Middleware.RateLimit.Burst = max(DefaultRateLimitBurstMin, int(cfg.Middleware.RateLimit.RPS))
	}
	if cfg.Middleware.Cache.Size == 0 {
		cfg.Middleware.Cache.Size = DefaultCacheSize
	}

	if cfg.Transactions.ReceiptTimeout == 0 {
		cfg.Transactions.ReceiptTimeout = DefaultReceiptTimeout
	}
	if cfg.Transactions.GasBuffer == nil {
		buffer := uint64(DefaultGasBuffer)
		cfg.Transactions.GasBuffer = &buffer
	}
	if cfg.Transactions.GasPrice.Strategy == "" {
		cfg.Transactions.GasPrice.Strategy = DefaultGasPriceStrategy
	}
	if cfg.Transactions.GasPrice.SampleBlocks == 0 {
		cfg.Transactions.GasPrice.SampleBlocks = DefaultSampleBlocks
	}
	if cfg.Transactions.GasPrice.Percentile == 0 {
		cfg.Transactions.GasPrice.Percentile = DefaultPercentile
	}

	if cfg.Filters.PollInterval == 0 {
		cfg.Filters.PollInterval = DefaultPollInterval
	}
	if cfg.Filters.DeliveryBuffer == 0 {
		cfg.Filters.DeliveryBuffer = DefaultDeliveryBuffer
	}
}

// Validate checks the struct tags of cfg.
func Validate(cfg *model.Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
