package txn

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/gasprice"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// FillDefaults returns a copy of req with every absent field resolved.
//
// value and data default to zero and empty. The remaining fields need the node:
// gas from eth_estimateGas on req as given, gasPrice from strategy or else
// eth_gasPrice, chainId from net_version, and nonce from the pending transaction
// count of From. With a nil caller these fail with a value error instead.
// A fully specified request is returned unchanged without any call.
func FillDefaults(ctx context.Context, caller provider.Provider, req Request, strategy gasprice.Strategy) (Request, error) {
	filled := req.Clone()

	if filled.Value == nil {
		filled.Value = new(hexutil.Big)
	}
	if filled.Data == nil {
		filled.Data = &hexutil.Bytes{}
	}

	if filled.Gas == nil {
		if caller == nil {
			return Request{}, offline(ParamGas)
		}
		var gas hexutil.Uint64
		if err := mustCall(ctx, caller, &gas, model.EthEstimateGas, req.withoutChainID()); err != nil {
			return Request{}, err
		}
		filled.Gas = &gas
	}

	if filled.GasPrice == nil {
		if caller == nil {
			return Request{}, offline(ParamGasPrice)
		}
		price, err := generateGasPrice(ctx, caller, strategy)
		if err != nil {
			return Request{}, err
		}
		filled.GasPrice = (*hexutil.Big)(price)
	}

	if filled.ChainID == nil && !filled.Unprotected {
		if caller == nil {
			return Request{}, offline(ParamChainID)
		}
		chainID, err := NetworkVersion(ctx, caller)
		if err != nil {
			return Request{}, err
		}
		filled.ChainID = (*hexutil.Big)(chainID)
	}

	if filled.Nonce == nil {
		if caller == nil {
			return Request{}, offline(ParamNonce)
		}
		if filled.From == nil {
			return Request{}, web3err.Value("you must specify %s or %s in the transaction", ParamNonce, ParamFrom)
		}
		var nonce hexutil.Uint64
		if err := mustCall(ctx, caller, &nonce, model.EthGetTransactionCount, *filled.From, model.EthPendingBlock); err != nil {
			return Request{}, err
		}
		filled.Nonce = &nonce
	}

	return filled, nil
}

func offline(param string) error {
	return web3err.Value("you must specify %s in the transaction when offline", param)
}

// generateGasPrice asks strategy first and falls back to the node price when the
// strategy is absent or has no opinion.
func generateGasPrice(ctx context.Context, caller provider.Provider, strategy gasprice.Strategy) (*big.Int, error) {
	if strategy != nil {
		price, err := strategy(ctx, caller)
		if err != nil {
			return nil, err
		}
		if price != nil {
			return price, nil
		}
	}
	return gasprice.NodeGasPrice(ctx, caller)
}

// NetworkVersion returns the net_version result as an integer.
func NetworkVersion(ctx context.Context, caller provider.Provider) (*big.Int, error) {
	var version string
	if err := mustCall(ctx, caller, &version, model.NetVersion); err != nil {
		return nil, err
	}
	id, ok := new(big.Int).SetString(version, 10)
	if !ok {
		return nil, web3err.Value("network version %q is not an integer", version)
	}
	return id, nil
}
