package model

import "time"

// Config defines the configuration of a client session.
//
// Values are read from a YAML file, overridden from WEB3_* environment variables
// and validated before any connection is made.
type Config struct {
	// Provider configures the transport to the remote node.
	Provider ProviderConfig `yaml:"provider" env:", prefix=PROVIDER_"`

	// Middleware selects the interceptors installed on the request pipeline.
	Middleware MiddlewareConfig `yaml:"middleware" env:", prefix=MIDDLEWARE_"`

	// Transactions configures defaults of the transaction builder.
	Transactions TransactionsConfig `yaml:"transactions" env:", prefix=TX_"`

	// Filters configures filter polling.
	Filters FiltersConfig `yaml:"filters" env:", prefix=FILTERS_"`
}

// ProviderConfig describes how to reach the remote node.
type ProviderConfig struct {
	// URL is an http(s), ws(s) or IPC endpoint.
	URL string `yaml:"url" env:"URL" validate:"required"`

	// JWTSecretPath is the filesystem path to a hex-encoded 32-byte secret.
	// When set, every request is authenticated with a JWT derived from it.
	JWTSecretPath string `yaml:"jwt_secret_path" env:"JWT_SECRET_PATH"`

	// DialTimeout bounds establishing the initial connection.
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT" validate:"gte=0"`
}

// MiddlewareConfig toggles the built-in middlewares.
type MiddlewareConfig struct {
	// Logging emits one debug record per request.
	Logging bool `yaml:"logging" env:"LOGGING"`

	// Metrics records request counts and latencies in Prometheus.
	Metrics bool `yaml:"metrics" env:"METRICS"`

	// Tracing opens an OpenTelemetry span per request.
	Tracing bool `yaml:"tracing" env:"TRACING"`

	// ProofOfAuthority moves oversize block extra data into proofOfAuthorityData.
	ProofOfAuthority bool `yaml:"proof_of_authority" env:"POA"`

	// ChecksumAddresses normalizes transaction addresses to their EIP-55 form.
	ChecksumAddresses bool `yaml:"checksum_addresses" env:"CHECKSUM_ADDRESSES"`

	Retry     RetryConfig     `yaml:"retry" env:", prefix=RETRY_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" env:", prefix=RATE_LIMIT_"`
	Cache     CacheConfig     `yaml:"cache" env:", prefix=CACHE_"`
}

// RetryConfig configures retrying of failed idempotent requests.
type RetryConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Attempts int           `yaml:"attempts" env:"ATTEMPTS" validate:"gte=0,lte=20"`
	Backoff  time.Duration `yaml:"backoff" env:"BACKOFF" validate:"gte=0"`
}

// RateLimitConfig configures client-side request throttling.
// A zero RPS disables throttling.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS" validate:"gte=0"`
	Burst int     `yaml:"burst" env:"BURST" validate:"gte=0"`
}

// CacheConfig configures caching of results that never change for a session.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	Size    int  `yaml:"size" env:"SIZE" validate:"gte=0"`
}

// TransactionsConfig configures the transaction builder.
type TransactionsConfig struct {
	// ReceiptTimeout bounds waiting for a transaction receipt.
	ReceiptTimeout time.Duration `yaml:"receipt_timeout" env:"RECEIPT_TIMEOUT" validate:"gte=0"`

	// GasBuffer is added to gas estimates by the buffered estimator. Unset means the
	// default; an explicit 0 disables buffering.
	GasBuffer *uint64 `yaml:"gas_buffer" env:"GAS_BUFFER, noinit"`

	GasPrice GasPriceConfig `yaml:"gas_price" env:", prefix=GAS_PRICE_"`
}

// GasPriceConfig selects the gas price strategy used when a transaction has none.
type GasPriceConfig struct {
	// Strategy is one of "network", "fixed" or "recent_blocks".
	Strategy string `yaml:"strategy" env:"STRATEGY" validate:"omitempty,oneof=network fixed recent_blocks"`

	// Fixed is the price in wei used by the "fixed" strategy.
	Fixed uint64 `yaml:"fixed" env:"FIXED" validate:"required_if=Strategy fixed"`

	// SampleBlocks is the number of recent blocks sampled by "recent_blocks".
	SampleBlocks int `yaml:"sample_blocks" env:"SAMPLE_BLOCKS" validate:"gte=0"`

	// Percentile of sampled prices chosen by "recent_blocks".
	Percentile float64 `yaml:"percentile" env:"PERCENTILE" validate:"gte=0,lte=100"`
}

// FiltersConfig configures the filter engine.
type FiltersConfig struct {
	// PollInterval is the cadence of watch loops.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" validate:"gte=0"`

	// DeliveryBuffer is the number of batches a watch loop may queue ahead of a slow callback.
	DeliveryBuffer int `yaml:"delivery_buffer" env:"DELIVERY_BUFFER" validate:"gte=0"`
}
