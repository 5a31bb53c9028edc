// Package provider defines the transport boundary of the client core.
//
// A Provider accepts a method name and an ordered parameter list and returns the raw
// JSON result or an error. Everything above it (the middleware pipeline, the
// transaction builder and the filter engine) only ever talks to a Provider.
package provider

import (
	"context"
	"encoding/json"
)

// Provider issues a single JSON-RPC request.
//
// Implementations must be safe for concurrent use: watch loops of several filters
// may call the same Provider at once.
type Provider interface {
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, method string, params []any) (json.RawMessage, error)

// Call implements Provider.
func (f Func) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return f(ctx, method, params)
}

// IsNull reports whether a raw result is absent or the JSON null literal.
func IsNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
