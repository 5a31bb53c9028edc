package middleware

import (
	"context"
	"encoding/json"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// idempotentMethods are safe to repeat after a transport failure.
// eth_getFilterChanges is excluded: a lost response cannot be replayed.
var idempotentMethods = mapset.NewThreadUnsafeSet(
	"web3_clientVersion",
	model.NetVersion,
	model.EthChainID,
	model.EthBlockNumber,
	model.EthGasPrice,
	model.EthGetBalance,
	model.EthGetCode,
	"eth_getStorageAt",
	model.EthGetBlockByNumber,
	model.EthGetBlockByHash,
	model.EthGetTransactionByHash,
	model.EthGetTransactionCount,
	model.EthGetTransactionReceipt,
	model.EthCall,
	model.EthEstimateGas,
	model.EthGetFilterLogs,
	model.EthGetLogs,
	"eth_syncing",
)

// IdempotentMethod reports whether method may be retried by default.
func IdempotentMethod(method string) bool {
	return idempotentMethods.Contains(method)
}

// Retry repeats a failed request up to attempts times in total while the error is
// retryable and allow accepts the method. The wait before attempt n is n*backoff.
// A nil allow selects IdempotentMethod.
func Retry(attempts int, backoff time.Duration, allow func(method string) bool) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	if allow == nil {
		allow = IdempotentMethod
	}

	return func(next RequestFunc, c Context) RequestFunc {
		logger := c.Logger.With().Str("component", "rpc-retry").Logger()

		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if !allow(method) {
				return next(ctx, method, params)
			}

			var lastErr error
			for attempt := 1; attempt <= attempts; attempt++ {
				result, err := next(ctx, method, params)
				if err == nil {
					return result, nil
				}
				lastErr = err
				if !web3err.IsRetryable(err) || attempt == attempts {
					break
				}

				logger.Debug().
					Err(err).
					Str("method", method).
					Int("attempt", attempt).
					Msg("retrying request")

				timer := time.NewTimer(time.Duration(attempt) * backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, lastErr
				case <-timer.C:
				}
			}
			return nil, lastErr
		}
	}
}
