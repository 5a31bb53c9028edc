package txn

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/thep2p/go-web3-core/internal/gasprice"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// minimumBump is the factor a replacement must raise the gas price by when the
// caller leaves the price to us.
var minimumBump = decimal.RequireFromString("1.1")

// PendingTransaction is the subset of eth_getTransactionByHash used for
// replacement. BlockHash is nil while the transaction is pending.
type PendingTransaction struct {
	Hash      common.Hash     `json:"hash"`
	BlockHash *common.Hash    `json:"blockHash"`
	From      common.Address  `json:"from"`
	To        *common.Address `json:"to"`
	Nonce     hexutil.Uint64  `json:"nonce"`
	Gas       hexutil.Uint64  `json:"gas"`
	GasPrice  *hexutil.Big    `json:"gasPrice"`
	Value     *hexutil.Big    `json:"value"`
	Input     hexutil.Bytes   `json:"input"`
}

// GetTransaction fetches a transaction by hash. A transaction the node does not
// know fails with a value error.
func GetTransaction(ctx context.Context, caller provider.Provider, hash common.Hash) (PendingTransaction, error) {
	var tx PendingTransaction
	found, err := call(ctx, caller, &tx, model.EthGetTransactionByHash, hash)
	if err != nil {
		return PendingTransaction{}, err
	}
	if !found {
		return PendingTransaction{}, web3err.Value("transaction %s not found", hash.Hex())
	}
	return tx, nil
}

// MinimumReplacementPrice is ceil(price*1.1), raised to price+1 when the bump
// rounds to no increase.
func MinimumReplacementPrice(price *big.Int) *big.Int {
	bumped := decimal.NewFromBigInt(price, 0).Mul(minimumBump).Ceil().BigInt()
	if bumped.Cmp(price) <= 0 {
		bumped = new(big.Int).Add(price, big.NewInt(1))
	}
	return bumped
}

// PrepareReplacement amends changes so they replace the pending transaction.
//
// It fails with a value error when the pending transaction is already mined, when
// changes carry a different nonce, or when changes carry a gas price that does not
// exceed the pending one. The pending nonce is copied in when absent. An absent gas
// price becomes the larger of the strategy's price and MinimumReplacementPrice.
// No request is sent unless a gas price must be generated.
func PrepareReplacement(
	ctx context.Context,
	caller provider.Provider,
	strategy gasprice.Strategy,
	pending PendingTransaction,
	changes Request,
) (Request, error) {
	if pending.BlockHash != nil {
		return Request{}, web3err.Value("supplied transaction with hash %s has already been mined", pending.Hash.Hex())
	}
	if changes.Nonce != nil && *changes.Nonce != pending.Nonce {
		return Request{}, web3err.Value("supplied nonce in new transaction must match the pending transaction")
	}

	out := changes.Clone()
	if out.Nonce == nil {
		nonce := pending.Nonce
		out.Nonce = &nonce
	}

	current := new(big.Int)
	if pending.GasPrice != nil {
		current = pending.GasPrice.ToInt()
	}

	if out.GasPrice != nil {
		if out.GasPrice.ToInt().Cmp(current) <= 0 {
			return Request{}, web3err.Value("supplied gas price must exceed existing transaction gas price")
		}
		return out, nil
	}

	minimum := MinimumReplacementPrice(current)
	price := minimum
	if strategy != nil {
		generated, err := strategy(ctx, caller)
		if err != nil {
			return Request{}, err
		}
		if generated != nil && generated.Cmp(minimum) > 0 {
			price = generated
		}
	}
	out.GasPrice = (*hexutil.Big)(new(big.Int).Set(price))
	return out, nil
}

// ReplacementBase turns a pending transaction into a request carrying its sender,
// recipient, value, data and gas, with changes applied on top.
func ReplacementBase(pending PendingTransaction, changes Request) Request {
	out := changes.Clone()
	if out.From == nil {
		from := pending.From
		out.From = &from
	}
	if out.To == nil && pending.To != nil {
		to := *pending.To
		out.To = &to
	}
	if out.Value == nil && pending.Value != nil {
		out.Value = cloneBig(pending.Value)
	}
	if out.Data == nil {
		data := append(hexutil.Bytes{}, pending.Input...)
		out.Data = &data
	}
	if out.Gas == nil {
		gas := pending.Gas
		out.Gas = &gas
	}
	return out
}
