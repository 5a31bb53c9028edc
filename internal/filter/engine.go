// Package filter installs node-side filters and polls them so that every entry the
// node reports is handed to the caller exactly once.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// Engine creates filters over a caller, normally the middleware pipeline.
type Engine struct {
	logger zerolog.Logger
	caller provider.Provider
}

// NewEngine returns an engine issuing its requests through caller.
func NewEngine(logger zerolog.Logger, caller provider.Provider) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "filter-engine").Logger(),
		caller: caller,
	}
}

// NewLogFilter installs a log filter for query.
func (e *Engine) NewLogFilter(ctx context.Context, query ethereum.FilterQuery) (*Filter, error) {
	arg, err := toFilterArg(query)
	if err != nil {
		return nil, err
	}
	return e.install(ctx, KindLog, &query, model.EthNewFilter, arg)
}

// NewBlockFilter installs a filter reporting new block hashes.
func (e *Engine) NewBlockFilter(ctx context.Context) (*Filter, error) {
	return e.install(ctx, KindBlock, nil, model.EthNewBlockFilter)
}

// NewPendingTransactionFilter installs a filter reporting new pending transaction hashes.
func (e *Engine) NewPendingTransactionFilter(ctx context.Context) (*Filter, error) {
	return e.install(ctx, KindPendingTransaction, nil, model.EthNewPendingTransactionFilter)
}

// Load adopts a filter installed elsewhere. query is only kept for log filters.
func (e *Engine) Load(id string, kind Kind, query *ethereum.FilterQuery) (*Filter, error) {
	if id == "" {
		return nil, web3err.Value("filter id is required")
	}
	if kind < KindLog || kind > KindPendingTransaction {
		return nil, web3err.Value("unknown filter kind %s", kind)
	}
	if kind != KindLog {
		query = nil
	}
	f := newFilter(e.logger, e.caller, id, kind, query)
	f.activate()
	return f, nil
}

func (e *Engine) install(ctx context.Context, kind Kind, query *ethereum.FilterQuery, method string, params ...any) (*Filter, error) {
	raw, err := e.caller.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return nil, web3err.Request(method, fmt.Errorf("invalid filter id %s", string(raw)), web3err.WithRetryable(false))
	}

	f := newFilter(e.logger, e.caller, id, kind, query)
	f.activate()
	e.logger.Debug().Str("filter_id", id).Stringer("kind", kind).Msg("filter installed")
	return f, nil
}

// toFilterArg renders query as eth_newFilter expects it. Absent block bounds
// default to the latest block so only entries from now on are reported.
func toFilterArg(q ethereum.FilterQuery) (map[string]any, error) {
	arg := map[string]any{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		if q.FromBlock != nil || q.ToBlock != nil {
			return nil, web3err.Value("cannot specify both blockHash and fromBlock/toBlock")
		}
		arg["blockHash"] = *q.BlockHash
		return arg, nil
	}
	from, err := toBlockNumArg(q.FromBlock)
	if err != nil {
		return nil, err
	}
	to, err := toBlockNumArg(q.ToBlock)
	if err != nil {
		return nil, err
	}
	arg["fromBlock"] = from
	arg["toBlock"] = to
	return arg, nil
}

func toBlockNumArg(number *big.Int) (string, error) {
	if number == nil {
		return model.EthLatestBlock, nil
	}
	if number.Sign() >= 0 {
		return hexutil.EncodeBig(number), nil
	}
	if number.IsInt64() && number.Int64() >= int64(rpc.SafeBlockNumber) {
		return rpc.BlockNumber(number.Int64()).String(), nil
	}
	return "", web3err.Value("invalid block number %d", number)
}
