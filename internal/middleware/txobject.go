package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/thep2p/go-web3-core/internal/model"
)

// txObjectMethods take a transaction object as their first parameter.
var txObjectMethods = map[string]bool{
	model.EthSendTransaction: true,
	model.EthCall:            true,
	model.EthEstimateGas:     true,
}

// txObject re-reads a transaction parameter of any shape as a field map.
func txObject(param any) (map[string]json.RawMessage, error) {
	encoded, err := json.Marshal(param)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &obj); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return obj, nil
}

// withFirst returns a copy of params whose first element is replaced.
func withFirst(params []any, first any) []any {
	out := make([]any, len(params))
	copy(out, params)
	out[0] = first
	return out
}
