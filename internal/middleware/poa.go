package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// maxExtraDataLength is the extraData size permitted on proof-of-work chains.
const maxExtraDataLength = 32

// ExtraDataToPOA renames the extraData field of block results to
// proofOfAuthorityData when it is longer than 32 bytes, as it is on clique chains
// where it carries the sealer signature. Other results pass through untouched.
func ExtraDataToPOA() Middleware {
	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			result, err := next(ctx, method, params)
			if err != nil {
				return nil, err
			}
			if method != model.EthGetBlockByNumber && method != model.EthGetBlockByHash {
				return result, nil
			}
			if provider.IsNull(result) {
				return result, nil
			}

			remapped, err := remapExtraData(result)
			if err != nil {
				return nil, web3err.Request(method, err, web3err.WithRetryable(false))
			}
			return remapped, nil
		}
	}
}

func remapExtraData(result json.RawMessage) (json.RawMessage, error) {
	var block map[string]json.RawMessage
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}

	raw, ok := block[model.BlockExtraData]
	if !ok {
		return result, nil
	}
	var extra hexutil.Bytes
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("decode %s: %w", model.BlockExtraData, err)
	}
	if len(extra) <= maxExtraDataLength {
		return result, nil
	}

	delete(block, model.BlockExtraData)
	block[model.BlockProofOfAuthorityData] = raw

	remapped, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	return remapped, nil
}
