package client_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/client"
	"github.com/thep2p/go-web3-core/internal/config"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/txn"
	"github.com/thep2p/go-web3-core/internal/unittest"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fullConfig enables every built-in middleware.
func fullConfig() model.Config {
	cfg := model.Config{
		Provider: model.ProviderConfig{URL: "http://127.0.0.1:8545"},
		Middleware: model.MiddlewareConfig{
			Logging:           true,
			Metrics:           true,
			Tracing:           true,
			ProofOfAuthority:  true,
			ChecksumAddresses: true,
			Retry:             model.RetryConfig{Enabled: true},
			RateLimit:         model.RateLimitConfig{RPS: 1000},
			Cache:             model.CacheConfig{Enabled: true},
		},
	}
	config.ApplyDefaults(&cfg)
	return cfg
}

func TestNewAssemblesPipeline(t *testing.T) {
	node := unittest.NewFakeNode()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	c, err := client.New(context.Background(), unittest.Logger(t), fullConfig(),
		client.WithProvider(node),
		client.WithRegisterer(prometheus.NewRegistry()),
		client.WithTracer(tracer),
	)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, []string{
		client.ProofOfAuthority,
		client.RateLimit,
		client.Retry,
		client.Cache,
		client.GasPrice,
		client.Checksum,
		client.Metrics,
		client.Tracing,
		client.Logging,
	}, c.Pipeline().Names())

	for i := 0; i < 3; i++ {
		_, err := c.Pipeline().Call(context.Background(), model.NetVersion, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, node.Calls(model.NetVersion), "net_version is cached")
	require.Len(t, recorder.Ended(), 3)
}

func TestNewMinimalPipeline(t *testing.T) {
	cfg := model.Config{}
	config.ApplyDefaults(&cfg)

	c, err := client.New(context.Background(), unittest.Logger(t), cfg, client.WithProvider(unittest.NewFakeNode()))
	require.NoError(t, err)
	defer c.Close()

	// the gas price strategy is always installed
	require.Equal(t, []string{client.GasPrice}, c.Pipeline().Names())
	require.Len(t, c.WatchOptions(), 2)
}

func TestStrategySelection(t *testing.T) {
	node := unittest.NewFakeNode()
	node.SetGasPrice(big.NewInt(7))

	network, err := client.Strategy(model.GasPriceConfig{Strategy: "network"})
	require.NoError(t, err)
	price, err := network(context.Background(), node)
	require.NoError(t, err)
	require.Equal(t, int64(7), price.Int64())

	fixed, err := client.Strategy(model.GasPriceConfig{Strategy: "fixed", Fixed: 99})
	require.NoError(t, err)
	price, err = fixed(context.Background(), node)
	require.NoError(t, err)
	require.Equal(t, int64(99), price.Int64())

	_, err = client.Strategy(model.GasPriceConfig{Strategy: "recent_blocks", SampleBlocks: 3, Percentile: 50})
	require.NoError(t, err)

	_, err = client.Strategy(model.GasPriceConfig{Strategy: "oracle"})
	require.Error(t, err)
}

// TestSessionSendsThroughPipeline verifies builder requests pass the configured
// middlewares before reaching the node.
func TestSessionSendsThroughPipeline(t *testing.T) {
	node := unittest.NewFakeNode()
	node.SetGasPrice(big.NewInt(5))
	signer := txn.NewKeySigner(unittest.PrivateKeyFixture(t))

	cfg := fullConfig()
	cfg.Transactions.GasPrice = model.GasPriceConfig{Strategy: "fixed", Fixed: 11}
	cfg.Transactions.ReceiptTimeout = time.Second

	c, err := client.New(context.Background(), unittest.Logger(t), cfg,
		client.WithProvider(node),
		client.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)

	from := signer.Address()
	to := unittest.RandomAddress(t)
	value := hexutil.Big(*big.NewInt(3))
	hash, err := c.Builder().Send(context.Background(), txn.Request{From: &from, To: &to, Value: &value}, signer)
	require.NoError(t, err)

	raw := node.RawTransactions()
	require.Len(t, raw, 1)
	sender, err := txn.Sender(raw[0])
	require.NoError(t, err)
	require.Equal(t, from, sender)

	pending, err := txn.GetTransaction(context.Background(), c.Pipeline(), hash)
	require.NoError(t, err)
	require.Equal(t, int64(11), pending.GasPrice.ToInt().Int64())
	require.Zero(t, node.Calls(model.EthGasPrice))
}
