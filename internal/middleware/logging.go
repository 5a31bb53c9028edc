package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Logging records one entry per request with its method, duration and outcome.
// Successful requests are logged at debug level, failures at warn.
func Logging(logger zerolog.Logger) Middleware {
	logger = logger.With().Str("component", "rpc-logging").Logger()

	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, method, params)

			if err != nil {
				logger.Warn().
					Err(err).
					Str("method", method).
					Dur("duration", time.Since(start)).
					Msg("rpc request failed")
				return nil, err
			}

			logger.Debug().
				Str("method", method).
				Int("params", len(params)).
				Int("result_bytes", len(result)).
				Dur("duration", time.Since(start)).
				Msg("rpc request")
			return result, nil
		}
	}
}
