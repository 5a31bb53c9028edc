package middleware

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/gasprice"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// GasPriceStrategy fills a missing gasPrice of eth_sendTransaction requests from
// strategy. The strategy's own queries go through the full pipeline. When the
// strategy has no opinion the request is sent as is and the node picks the price.
func GasPriceStrategy(strategy gasprice.Strategy) Middleware {
	return func(next RequestFunc, c Context) RequestFunc {
		caller := provider.Func(c.Call)

		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if method != model.EthSendTransaction || len(params) == 0 {
				return next(ctx, method, params)
			}

			obj, err := txObject(params[0])
			if err != nil {
				return nil, web3err.Value("%s: %v", method, err)
			}
			if raw, ok := obj[model.TxGasPrice]; ok && !provider.IsNull(raw) {
				return next(ctx, method, params)
			}

			price, err := strategy(ctx, caller)
			if err != nil {
				return nil, err
			}
			if price == nil {
				return next(ctx, method, params)
			}

			obj[model.TxGasPrice], err = json.Marshal((*hexutil.Big)(price))
			if err != nil {
				return nil, web3err.Value("encode gas price: %v", err)
			}
			return next(ctx, method, withFirst(params, obj))
		}
	}
}
