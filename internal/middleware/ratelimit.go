package middleware

import (
	"context"
	"encoding/json"

	"github.com/thep2p/go-web3-core/internal/web3err"
	"golang.org/x/time/rate"
)

// RateLimit delays requests so the provider sees at most the limiter's rate.
// A request whose context ends while waiting fails without reaching the provider.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, web3err.Request(method, err, web3err.WithRetryable(false))
			}
			return next(ctx, method, params)
		}
	}
}
