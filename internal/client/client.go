// Package client assembles a session from configuration: a provider, the middleware
// pipeline wrapping it, and the transaction builder and filter engine on top.
package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/filter"
	"github.com/thep2p/go-web3-core/internal/gasprice"
	"github.com/thep2p/go-web3-core/internal/middleware"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/txn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// TracerName names the tracer used when none is given.
const TracerName = "github.com/thep2p/go-web3-core"

// Names of the built-in pipeline entries.
const (
	ProofOfAuthority = "proof_of_authority"
	RateLimit        = "rate_limit"
	Retry            = "retry"
	Cache            = "cache"
	GasPrice         = "gas_price_strategy"
	Checksum         = "checksum_addresses"
	Metrics          = "metrics"
	Tracing          = "tracing"
	Logging          = "logging"
)

// Client is one session against a node.
type Client struct {
	logger   zerolog.Logger
	cfg      model.Config
	provider provider.Provider
	owned    *provider.RPCProvider
	pipeline *middleware.Pipeline
	builder  *txn.Builder
	filters  *filter.Engine
}

// Option customizes New.
type Option func(*options)

type options struct {
	provider   provider.Provider
	registerer prometheus.Registerer
	tracer     trace.Tracer
}

// WithProvider uses p instead of dialing the configured URL. The caller keeps
// ownership of p.
func WithProvider(p provider.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithRegisterer registers the metrics middleware's collectors with reg instead of
// the default Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracer sets the tracer of the tracing middleware.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New connects according to cfg and builds the session.
func New(ctx context.Context, logger zerolog.Logger, cfg model.Config, opts ...Option) (*Client, error) {
	o := options{
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(TracerName)
	}

	c := &Client{
		logger:   logger.With().Str("component", "client").Logger(),
		cfg:      cfg,
		provider: o.provider,
	}

	if c.provider == nil {
		dialCtx := ctx
		if cfg.Provider.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.Provider.DialTimeout)
			defer cancel()
		}
		var dialOpts []provider.DialOption
		if cfg.Provider.JWTSecretPath != "" {
			dialOpts = append(dialOpts, provider.WithJWTSecret(cfg.Provider.JWTSecretPath))
		}
		p, err := provider.Dial(dialCtx, logger, cfg.Provider.URL, dialOpts...)
		if err != nil {
			return nil, err
		}
		c.provider = p
		c.owned = p
	}

	strategy, err := Strategy(cfg.Transactions.GasPrice)
	if err != nil {
		c.Close()
		return nil, err
	}

	entries, err := Entries(logger, cfg.Middleware, strategy, o.registerer, o.tracer)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.pipeline, err = middleware.New(logger, c.provider, entries...)
	if err != nil {
		c.Close()
		return nil, err
	}

	builderOpts := []txn.Option{
		txn.WithGasPriceStrategy(strategy),
		txn.WithReceiptTimeout(cfg.Transactions.ReceiptTimeout),
	}
	if cfg.Transactions.GasBuffer != nil {
		builderOpts = append(builderOpts, txn.WithGasBuffer(*cfg.Transactions.GasBuffer))
	}
	c.builder = txn.NewBuilder(logger, c.pipeline, builderOpts...)
	c.filters = filter.NewEngine(logger, c.pipeline)

	c.logger.Info().Str("pipeline", c.pipeline.String()).Msg("client session ready")
	return c, nil
}

// Strategy returns the gas price strategy selected by cfg.
func Strategy(cfg model.GasPriceConfig) (gasprice.Strategy, error) {
	switch cfg.Strategy {
	case "", "network":
		return gasprice.Network(), nil
	case "fixed":
		return gasprice.Fixed(new(big.Int).SetUint64(cfg.Fixed)), nil
	case "recent_blocks":
		return gasprice.RecentBlocks(cfg.SampleBlocks, cfg.Percentile), nil
	}
	return nil, fmt.Errorf("unknown gas price strategy %q", cfg.Strategy)
}

// Entries returns the built-in pipeline entries enabled by cfg, innermost first.
//
// Proof-of-authority handling sits next to the provider. Throttling applies to every
// attempt of a retried request, cached answers skip both, and the observability
// entries outermost see each call once as the caller made it.
func Entries(
	logger zerolog.Logger,
	cfg model.MiddlewareConfig,
	strategy gasprice.Strategy,
	reg prometheus.Registerer,
	tracer trace.Tracer,
) ([]middleware.Entry, error) {
	var entries []middleware.Entry
	add := func(name string, m middleware.Middleware) {
		entries = append(entries, middleware.Entry{Name: name, Factory: m, Layer: len(entries)})
	}

	if cfg.ProofOfAuthority {
		add(ProofOfAuthority, middleware.ExtraDataToPOA())
	}
	if cfg.RateLimit.RPS > 0 {
		add(RateLimit, middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)))
	}
	if cfg.Retry.Enabled {
		add(Retry, middleware.Retry(cfg.Retry.Attempts, cfg.Retry.Backoff, nil))
	}
	if cfg.Cache.Enabled {
		cache, err := middleware.Cache(cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		add(Cache, cache)
	}
	if strategy != nil {
		add(GasPrice, middleware.GasPriceStrategy(strategy))
	}
	if cfg.ChecksumAddresses {
		add(Checksum, middleware.ChecksumAddresses())
	}
	if cfg.Metrics {
		metrics, err := middleware.Metrics(reg)
		if err != nil {
			return nil, err
		}
		add(Metrics, metrics)
	}
	if cfg.Tracing {
		add(Tracing, middleware.Tracing(tracer))
	}
	if cfg.Logging {
		add(Logging, middleware.Logging(logger))
	}
	return entries, nil
}

// Pipeline returns the session's middleware pipeline.
func (c *Client) Pipeline() *middleware.Pipeline {
	return c.pipeline
}

// Builder returns the session's transaction builder.
func (c *Client) Builder() *txn.Builder {
	return c.builder
}

// Filters returns the session's filter engine.
func (c *Client) Filters() *filter.Engine {
	return c.filters
}

// WatchOptions returns the configured polling cadence and delivery buffer.
func (c *Client) WatchOptions() []filter.WatchOption {
	return []filter.WatchOption{
		filter.WithPollInterval(c.cfg.Filters.PollInterval),
		filter.WithDeliveryBuffer(c.cfg.Filters.DeliveryBuffer),
	}
}

// Close releases the connection if the session dialed it.
func (c *Client) Close() {
	if c.owned != nil {
		c.owned.Close()
		c.owned = nil
	}
}
