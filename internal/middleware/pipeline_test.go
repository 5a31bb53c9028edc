package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/middleware"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// callTrace records the order in which middlewares observe a call.
type callTrace struct {
	mu     sync.Mutex
	events []string
}

func (tr *callTrace) add(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *callTrace) take() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := tr.events
	tr.events = nil
	return out
}

// tracing returns an entry that records "out:<name>" before and "in:<name>" after
// the inner call.
func tracing(tr *callTrace, name string, layer int) middleware.Entry {
	return middleware.Entry{
		Name:  name,
		Layer: layer,
		Factory: func(next middleware.RequestFunc, _ middleware.Context) middleware.RequestFunc {
			return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
				tr.add("out:" + name)
				result, err := next(ctx, method, params)
				tr.add("in:" + name)
				return result, err
			}
		},
	}
}

// echo is a provider that returns the method name as a JSON string.
func echo() provider.Provider {
	return provider.Func(func(_ context.Context, method string, _ []any) (json.RawMessage, error) {
		return json.Marshal(method)
	})
}

func newPipeline(t *testing.T, p provider.Provider, entries ...middleware.Entry) *middleware.Pipeline {
	t.Helper()
	pl, err := middleware.New(zerolog.Nop(), p, entries...)
	require.NoError(t, err)
	return pl
}

// TestPipelineOrdering verifies that layer 0 is adjacent to the provider: with A, B, C
// at layers 0, 1, 2 the outbound request passes C, B, A and the result returns A, B, C.
// Entry 0 wraps the raw provider call directly, as proof-of-authority injection at
// layer 0 requires.
func TestPipelineOrdering(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "C", 2), tracing(tr, "A", 0), tracing(tr, "B", 1))
	require.Equal(t, []string{"A", "B", "C"}, pl.Names())

	result, err := pl.Call(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"eth_blockNumber"`, string(result))
	require.Equal(t, []string{"out:C", "out:B", "out:A", "in:A", "in:B", "in:C"}, tr.take())

	require.NoError(t, pl.Remove("B"))
	_, err = pl.Call(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:C", "out:A", "in:A", "in:C"}, tr.take())

	// re-adding reproduces the original chain
	require.NoError(t, pl.Inject(tracing(tr, "B", 0), 1))
	_, err = pl.Call(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:C", "out:B", "out:A", "in:A", "in:B", "in:C"}, tr.take())
}

// TestPipelineInject verifies injection shifts entries at and above the layer.
func TestPipelineInject(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "A", 0), tracing(tr, "B", 1))

	require.NoError(t, pl.Inject(tracing(tr, "poa", 0), 0))
	require.Equal(t, []string{"poa", "A", "B"}, pl.Names())

	require.NoError(t, pl.Inject(tracing(tr, "top", 0), 99))
	require.Equal(t, []string{"poa", "A", "B", "top"}, pl.Names())

	entries := pl.Entries()
	for i, e := range entries {
		require.Equal(t, i, e.Layer)
	}

	require.ErrorIs(t, pl.Inject(tracing(tr, "neg", 0), -1), web3err.ErrValue)
}

// TestPipelineAdd verifies Add places the entry outermost.
func TestPipelineAdd(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "A", 0))

	require.NoError(t, pl.Add(tracing(tr, "B", 0)))
	require.Equal(t, []string{"A", "B"}, pl.Names())
	require.Equal(t, "provider <- A <- B", pl.String())
}

// TestPipelineDuplicateAndUnknown verifies name uniqueness and unknown-name failures.
func TestPipelineDuplicateAndUnknown(t *testing.T) {
	tr := &callTrace{}

	_, err := middleware.New(zerolog.Nop(), echo(), tracing(tr, "A", 0), tracing(tr, "A", 1))
	require.ErrorIs(t, err, web3err.ErrValidation)

	pl := newPipeline(t, echo(), tracing(tr, "A", 0), tracing(tr, "B", 1))
	require.ErrorIs(t, pl.Add(tracing(tr, "A", 0)), web3err.ErrValidation)
	require.ErrorIs(t, pl.Inject(tracing(tr, "B", 0), 0), web3err.ErrValidation)
	require.ErrorIs(t, pl.Remove("missing"), web3err.ErrValidation)
	require.ErrorIs(t, pl.Replace("missing", tracing(tr, "X", 0)), web3err.ErrValidation)
	require.ErrorIs(t, pl.Replace("A", tracing(tr, "B", 0)), web3err.ErrValidation)
	require.ErrorIs(t, pl.Add(middleware.Entry{Name: "nil-factory"}), web3err.ErrValue)

	require.Equal(t, []string{"A", "B"}, pl.Names())
}

// TestPipelineReplace verifies replacement keeps the original layer unless told otherwise.
func TestPipelineReplace(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "A", 0), tracing(tr, "B", 1), tracing(tr, "C", 2))

	// the new entry's own layer is ignored
	require.NoError(t, pl.Replace("B", tracing(tr, "B2", 7)))
	require.Equal(t, []string{"A", "B2", "C"}, pl.Names())

	_, err := pl.Call(context.Background(), "net_version", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:C", "out:B2", "out:A", "in:A", "in:B2", "in:C"}, tr.take())

	require.NoError(t, pl.Replace("B2", tracing(tr, "B3", 0), middleware.AtLayer(0)))
	require.Equal(t, []string{"B3", "A", "C"}, pl.Names())
}

// TestPipelineReplaceInvalidLayerKeepsChain verifies a rejected move leaves both the
// registry and the composed chain untouched.
func TestPipelineReplaceInvalidLayerKeepsChain(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "A", 0), tracing(tr, "B", 1))

	err := pl.Replace("B", tracing(tr, "B2", 0), middleware.AtLayer(-1))
	require.ErrorIs(t, err, web3err.ErrValue)
	require.Equal(t, []string{"A", "B"}, pl.Names())

	_, err = pl.Call(context.Background(), "net_version", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:B", "out:A", "in:A", "in:B"}, tr.take())
}

// TestPipelineBuildSnapshot verifies a built chain is unaffected by later mutations.
func TestPipelineBuildSnapshot(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo(), tracing(tr, "A", 0))
	chain := pl.Build()

	require.NoError(t, pl.Add(tracing(tr, "B", 0)))
	_, err := chain(context.Background(), "net_version", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:A", "in:A"}, tr.take())

	pl.Clear()
	require.Empty(t, pl.Names())
	_, err = pl.Call(context.Background(), "net_version", nil)
	require.NoError(t, err)
	require.Empty(t, tr.take())
}

// TestPipelineShortCircuitAndTransform verifies a middleware can answer without the
// provider and rewrite requests on their way in.
func TestPipelineShortCircuitAndTransform(t *testing.T) {
	calls := 0
	p := provider.Func(func(_ context.Context, method string, _ []any) (json.RawMessage, error) {
		calls++
		return json.Marshal(method)
	})

	shortCircuit := middleware.Entry{
		Name: "fixed-chain-id",
		Factory: func(next middleware.RequestFunc, _ middleware.Context) middleware.RequestFunc {
			return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
				if method == "eth_chainId" {
					return json.RawMessage(`"0x1"`), nil
				}
				return next(ctx, method, params)
			}
		},
	}
	rename := middleware.Entry{
		Name: "rename",
		Factory: func(next middleware.RequestFunc, _ middleware.Context) middleware.RequestFunc {
			return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
				if method == "legacy_version" {
					method = "net_version"
				}
				return next(ctx, method, params)
			}
		},
	}
	pl := newPipeline(t, p, shortCircuit, rename)

	result, err := pl.Call(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"0x1"`, string(result))
	require.Equal(t, 0, calls)

	result, err = pl.Call(context.Background(), "legacy_version", nil)
	require.NoError(t, err)
	require.JSONEq(t, `"net_version"`, string(result))
	require.Equal(t, 1, calls)
}

// TestPipelineContextCall verifies side requests issued through Context.Call pass
// through the whole pipeline, including entries outside the issuing one.
func TestPipelineContextCall(t *testing.T) {
	tr := &callTrace{}
	sideCaller := middleware.Entry{
		Name: "side",
		Factory: func(next middleware.RequestFunc, c middleware.Context) middleware.RequestFunc {
			return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
				if method == "eth_sendTransaction" {
					if _, err := c.Call(ctx, "eth_gasPrice", nil); err != nil {
						return nil, err
					}
				}
				return next(ctx, method, params)
			}
		},
	}
	pl := newPipeline(t, echo(), sideCaller, tracing(tr, "outer", 1))

	_, err := pl.Call(context.Background(), "eth_sendTransaction", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"out:outer", "out:outer", "in:outer", "in:outer"}, tr.take())
}

// TestPipelineErrors verifies provider failures become request errors while
// already classified errors pass through unchanged.
func TestPipelineErrors(t *testing.T) {
	transport := errors.New("connection refused")
	pl := newPipeline(t, provider.Func(func(_ context.Context, method string, _ []any) (json.RawMessage, error) {
		if method == "eth_call" {
			return nil, web3err.Value("bad call")
		}
		return nil, transport
	}))

	_, err := pl.Call(context.Background(), "eth_gasPrice", nil)
	require.ErrorIs(t, err, web3err.ErrRequest)
	require.ErrorIs(t, err, transport)

	_, err = pl.Call(context.Background(), "eth_call", nil)
	require.ErrorIs(t, err, web3err.ErrValue)
	require.NotErrorIs(t, err, web3err.ErrRequest)
}

// TestPipelineConcurrentMutation exercises calls racing with registry mutation.
func TestPipelineConcurrentMutation(t *testing.T) {
	tr := &callTrace{}
	pl := newPipeline(t, echo())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := pl.Call(context.Background(), "net_version", nil)
				assert.NoError(t, err)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		require.NoError(t, pl.Add(tracing(tr, "m", 0)))
		require.NoError(t, pl.Remove("m"))
	}
	wg.Wait()
}
