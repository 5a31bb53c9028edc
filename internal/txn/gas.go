package txn

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// DefaultGasBuffer is added to gas estimates by BufferedGasEstimate.
const DefaultGasBuffer uint64 = 100_000

// BlockGasLimit returns the gas limit of the block at tag, e.g. "latest".
func BlockGasLimit(ctx context.Context, caller provider.Provider, tag string) (uint64, error) {
	var block struct {
		GasLimit *hexutil.Uint64 `json:"gasLimit"`
	}
	found, err := call(ctx, caller, &block, model.EthGetBlockByNumber, tag, false)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, web3err.Value("block %s not found", tag)
	}
	if block.GasLimit == nil {
		return 0, web3err.Value("block %s has no %s", tag, model.BlockGasLimit)
	}
	return uint64(*block.GasLimit), nil
}

// BufferedGasEstimate estimates the gas of req and adds buffer, capped at the
// latest block's gas limit. An estimate above that limit fails with a value error
// since no block could include the transaction.
func BufferedGasEstimate(ctx context.Context, caller provider.Provider, req Request, buffer uint64) (uint64, error) {
	var estimate hexutil.Uint64
	if err := mustCall(ctx, caller, &estimate, model.EthEstimateGas, req.withoutChainID()); err != nil {
		return 0, err
	}

	limit, err := BlockGasLimit(ctx, caller, model.EthLatestBlock)
	if err != nil {
		return 0, err
	}

	if uint64(estimate) > limit {
		return 0, web3err.Value(
			"contract does not appear to be deployable within the current network gas limits; estimated: %d, current gas limit: %d",
			uint64(estimate), limit)
	}
	if buffer >= limit-uint64(estimate) {
		return limit, nil
	}
	return uint64(estimate) + buffer, nil
}
