package provider_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/unittest"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// netService answers net_version for readiness checks.
type netService struct{}

func (netService) Version() string { return "1337" }

// TestDialWithJWTSecret verifies requests to an authenticated endpoint carry a valid token.
func TestDialWithJWTSecret(t *testing.T) {
	tmp := unittest.NewTempDir(t)
	defer tmp.Remove()

	path, err := provider.GenerateJWTSecret(tmp.Path())
	require.NoError(t, err)
	secret, err := provider.ReadJWTSecret(path)
	require.NoError(t, err)

	server := unittest.NewAuthenticatedServer(t, secret, "net", netService{})
	ctx := context.Background()

	p, err := provider.Dial(ctx, unittest.Logger(t), server.URL, provider.WithJWTSecret(path))
	require.NoError(t, err)
	defer p.Close()

	raw, err := p.Call(ctx, "net_version", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"1337"`, string(raw))
	require.Zero(t, server.Rejected())
}

// TestDialWithoutJWTSecretRejected verifies an unauthenticated provider surfaces the
// rejection as a non-retryable request error.
func TestDialWithoutJWTSecretRejected(t *testing.T) {
	var secret [32]byte
	copy(secret[:], "0123456789abcdef0123456789abcdef")
	server := unittest.NewAuthenticatedServer(t, secret, "net", netService{})
	ctx := context.Background()

	p, err := provider.Dial(ctx, zerolog.Nop(), server.URL)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Call(ctx, "net_version", nil)
	require.ErrorIs(t, err, web3err.ErrRequest)
	require.False(t, web3err.IsRetryable(err))
	require.Equal(t, int64(1), server.Rejected())
}

// TestDialWithWrongJWTSecret verifies a token signed with another secret is refused.
func TestDialWithWrongJWTSecret(t *testing.T) {
	tmp := unittest.NewTempDir(t)
	defer tmp.Remove()

	path, err := provider.GenerateJWTSecret(tmp.Path())
	require.NoError(t, err)
	var other [32]byte
	server := unittest.NewAuthenticatedServer(t, other, "net", netService{})

	p, err := provider.Dial(context.Background(), zerolog.Nop(), server.URL, provider.WithJWTSecret(path))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Call(context.Background(), "net_version", nil)
	require.ErrorIs(t, err, web3err.ErrRequest)
	require.Equal(t, int64(1), server.Rejected())
}

// TestDialMissingJWTSecret verifies dialing fails before connecting when the secret
// cannot be read.
func TestDialMissingJWTSecret(t *testing.T) {
	tmp := unittest.NewTempDir(t)
	defer tmp.Remove()

	missing := filepath.Join(tmp.Path(), provider.JWTFileName)
	_, err := os.Stat(missing)
	require.True(t, os.IsNotExist(err))

	_, err = provider.Dial(context.Background(), zerolog.Nop(), "http://127.0.0.1:1", provider.WithJWTSecret(missing))
	require.ErrorContains(t, err, "read jwt")
}

// TestDialHTTP verifies a plain HTTP endpoint and that losing it yields retryable errors.
func TestDialHTTP(t *testing.T) {
	rpcServer := rpc.NewServer()
	require.NoError(t, rpcServer.RegisterName("net", netService{}))
	defer rpcServer.Stop()
	server := httptest.NewServer(rpcServer)
	ctx := context.Background()

	unittest.RequireRPCReadyWithinTimeout(t, ctx, server.URL, 5*time.Second)

	p, err := provider.Dial(ctx, unittest.Logger(t), server.URL)
	require.NoError(t, err)
	defer p.Close()

	raw, err := p.Call(ctx, "net_version", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"1337"`, string(raw))

	addr := server.Listener.Addr().String()
	server.Close()
	unittest.RequireAddrClosesWithinTimeout(t, addr, 5*time.Second)

	_, err = p.Call(ctx, "net_version", nil)
	require.ErrorIs(t, err, web3err.ErrRequest)
	require.True(t, web3err.IsRetryable(err))
}
