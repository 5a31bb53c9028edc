package txn

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// DefaultReceiptTimeout bounds WaitForReceipt when no timeout is configured.
const DefaultReceiptTimeout = 120 * time.Second

// defaultMaxJitter bounds the random sleep between receipt polls.
const defaultMaxJitter = time.Second

// ReceiptOption customizes WaitForReceipt.
type ReceiptOption func(*receiptConfig)

type receiptConfig struct {
	maxJitter time.Duration
}

// WithMaxJitter bounds the random sleep between polls. Negative bounds are ignored.
func WithMaxJitter(d time.Duration) ReceiptOption {
	return func(cfg *receiptConfig) {
		if d >= 0 {
			cfg.maxJitter = d
		}
	}
}

// WaitForReceipt polls eth_getTransactionReceipt until the node returns a receipt,
// sleeping a random fraction of the jitter bound between attempts. It fails with a
// timeout error once timeout has elapsed. Request errors end the wait immediately.
func WaitForReceipt(
	ctx context.Context,
	caller provider.Provider,
	hash common.Hash,
	timeout time.Duration,
	opts ...ReceiptOption,
) (*types.Receipt, error) {
	cfg := receiptConfig{maxJitter: defaultMaxJitter}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := func() error {
		return web3err.Timeout("transaction %s is not in the chain after %s", hash.Hex(), timeout)
	}

	for {
		var receipt types.Receipt
		found, err := call(ctx, caller, &receipt, model.EthGetTransactionReceipt, hash)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, timedOut()
			}
			return nil, err
		}
		if found {
			return &receipt, nil
		}

		sleep := time.Duration(rand.Int64N(int64(cfg.maxJitter) + 1))
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, timedOut()
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
