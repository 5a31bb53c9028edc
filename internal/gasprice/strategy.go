// Package gasprice provides gas price strategies used when a transaction does not
// carry an explicit gasPrice.
package gasprice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// Strategy generates a gas price in wei. A nil price with a nil error means the
// strategy has no opinion and the caller falls back to the node's eth_gasPrice.
type Strategy func(ctx context.Context, caller provider.Provider) (*big.Int, error)

// Fixed always returns price.
func Fixed(price *big.Int) Strategy {
	p := new(big.Int).Set(price)
	return func(context.Context, provider.Provider) (*big.Int, error) {
		return new(big.Int).Set(p), nil
	}
}

// Network returns the node's suggested gas price.
func Network() Strategy {
	return func(ctx context.Context, caller provider.Provider) (*big.Int, error) {
		return NodeGasPrice(ctx, caller)
	}
}

// NodeGasPrice queries eth_gasPrice.
func NodeGasPrice(ctx context.Context, caller provider.Provider) (*big.Int, error) {
	raw, err := caller.Call(ctx, model.EthGasPrice, nil)
	if err != nil {
		return nil, err
	}
	var price hexutil.Big
	if err := json.Unmarshal(raw, &price); err != nil {
		return nil, web3err.Request(model.EthGasPrice, fmt.Errorf("decode gas price: %w", err), web3err.WithRetryable(false))
	}
	return price.ToInt(), nil
}

type blockGasPrices struct {
	Transactions []struct {
		GasPrice *hexutil.Big `json:"gasPrice"`
	} `json:"transactions"`
}

// RecentBlocks returns the given percentile of the gas prices paid by transactions
// in the latest blocks, rounded up to a whole wei. Fewer than MinSamples
// transactions across those blocks fail with an insufficient data error.
func RecentBlocks(blocks int, percentile float64) Strategy {
	return func(ctx context.Context, caller provider.Provider) (*big.Int, error) {
		raw, err := caller.Call(ctx, model.EthBlockNumber, nil)
		if err != nil {
			return nil, err
		}
		var head hexutil.Uint64
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, web3err.Request(model.EthBlockNumber, fmt.Errorf("decode block number: %w", err), web3err.WithRetryable(false))
		}

		var samples []decimal.Decimal
		for i := 0; i < blocks && uint64(i) <= uint64(head); i++ {
			number := hexutil.Uint64(uint64(head) - uint64(i))
			raw, err := caller.Call(ctx, model.EthGetBlockByNumber, []any{number, true})
			if err != nil {
				return nil, err
			}
			if provider.IsNull(raw) {
				continue
			}

			var block blockGasPrices
			if err := json.Unmarshal(raw, &block); err != nil {
				return nil, web3err.Request(model.EthGetBlockByNumber, fmt.Errorf("decode block %d: %w", number, err), web3err.WithRetryable(false))
			}
			for _, tx := range block.Transactions {
				if tx.GasPrice != nil {
					samples = append(samples, decimal.NewFromBigInt(tx.GasPrice.ToInt(), 0))
				}
			}
		}

		price, err := Percentile(samples, percentile)
		if err != nil {
			return nil, err
		}
		return price.Ceil().BigInt(), nil
	}
}
