package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// RPCProvider is a Provider backed by a go-ethereum rpc.Client.
//
// The transport (HTTP, WebSocket or IPC) is selected by the endpoint URL. The
// underlying client is safe for concurrent use.
type RPCProvider struct {
	logger zerolog.Logger
	client *rpc.Client
}

var _ Provider = (*RPCProvider)(nil)

// DialOption modifies how an RPCProvider connects.
type DialOption func(*dialConfig)

type dialConfig struct {
	jwtSecretPath string
}

// WithJWTSecret authenticates every request with a JWT derived from the
// hex-encoded secret stored at path.
func WithJWTSecret(path string) DialOption {
	return func(cfg *dialConfig) {
		cfg.jwtSecretPath = path
	}
}

// Dial connects to the node at endpoint.
func Dial(ctx context.Context, logger zerolog.Logger, endpoint string, opts ...DialOption) (*RPCProvider, error) {
	cfg := dialConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var rpcOpts []rpc.ClientOption
	if strings.TrimSpace(cfg.jwtSecretPath) != "" {
		secret, err := ReadJWTSecret(cfg.jwtSecretPath)
		if err != nil {
			return nil, err
		}
		rpcOpts = append(rpcOpts, rpc.WithHTTPAuth(node.NewJWTAuth(secret)))
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", endpoint, err)
	}

	logger = logger.With().Str("component", "rpc-provider").Logger()
	logger.Info().Str("endpoint", endpoint).Bool("jwt", len(rpcOpts) > 0).Msg("connected to node")

	return &RPCProvider{logger: logger, client: client}, nil
}

// NewRPCProvider wraps an already connected client.
func NewRPCProvider(logger zerolog.Logger, client *rpc.Client) *RPCProvider {
	return &RPCProvider{
		logger: logger.With().Str("component", "rpc-provider").Logger(),
		client: client,
	}
}

// Call implements Provider.
//
// Errors returned by the node itself (JSON-RPC error objects) and HTTP 4xx
// responses are not retryable; other transport failures are.
func (p *RPCProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, web3err.Request(method, err, web3err.WithRetryable(false))
		}
		var httpErr rpc.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			p.logger.Warn().Int("status", httpErr.StatusCode).Str("method", method).Msg("node refused request")
			return nil, web3err.Request(method, err, web3err.WithRetryable(false))
		}
		return nil, web3err.Request(method, err)
	}
	return result, nil
}

// Close releases the connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}
