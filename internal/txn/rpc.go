package txn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// call issues method and decodes a non-null result into out. It reports whether
// the result was present.
func call(ctx context.Context, caller provider.Provider, out any, method string, params ...any) (bool, error) {
	raw, err := caller.Call(ctx, method, params)
	if err != nil {
		return false, err
	}
	if provider.IsNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, web3err.Request(method, fmt.Errorf("decode result: %w", err), web3err.WithRetryable(false))
	}
	return true, nil
}

// mustCall is call for methods whose result may not be null.
func mustCall(ctx context.Context, caller provider.Provider, out any, method string, params ...any) error {
	ok, err := call(ctx, caller, out, method, params...)
	if err != nil {
		return err
	}
	if !ok {
		return web3err.Request(method, fmt.Errorf("empty result"), web3err.WithRetryable(false))
	}
	return nil
}
