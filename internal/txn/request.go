// Package txn builds legacy transactions: it fills chain-dependent defaults, applies
// EIP-155 replay protection, encodes the canonical RLP record for signing and
// sending, and implements the replacement, receipt wait and gas estimate protocols.
package txn

import (
	"encoding/json"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// Transaction parameter names.
const (
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamGas      = "gas"
	ParamGasPrice = "gasPrice"
	ParamValue    = "value"
	ParamData     = "data"
	ParamNonce    = "nonce"
	ParamChainID  = "chainId"
)

// ValidParams lists every parameter a transaction request may carry.
var ValidParams = []string{
	ParamFrom,
	ParamTo,
	ParamGas,
	ParamGasPrice,
	ParamValue,
	ParamData,
	ParamNonce,
	ParamChainID,
}

var validParams = func() map[string]bool {
	m := make(map[string]bool, len(ValidParams))
	for _, p := range ValidParams {
		m[p] = true
	}
	return m
}()

// Request is a transaction before signing. Nil fields are absent and get resolved
// by FillDefaults. To stays nil for contract creation.
type Request struct {
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	ChainID  *hexutil.Big    `json:"chainId,omitempty"`

	// Unprotected marks an explicit null chainId: the transaction is signed without
	// replay protection and no chain id is looked up.
	Unprotected bool `json:"-"`
}

// plainRequest has Request's fields without its JSON methods.
type plainRequest Request

// UnmarshalJSON decodes a transaction object, rejecting unknown parameters.
// "chainId": null sets Unprotected.
func (r *Request) UnmarshalJSON(input []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return web3err.Value("decode transaction: %v", err)
	}
	if err := AssertValidParams(fields); err != nil {
		return err
	}

	var dec plainRequest
	if err := json.Unmarshal(input, &dec); err != nil {
		return web3err.Value("decode transaction: %v", err)
	}
	*r = Request(dec)

	if raw, ok := fields[ParamChainID]; ok && provider.IsNull(raw) {
		r.Unprotected = true
	}
	return nil
}

// MarshalJSON encodes the present fields, and "chainId": null when Unprotected.
func (r Request) MarshalJSON() ([]byte, error) {
	encoded, err := json.Marshal(plainRequest(r))
	if err != nil {
		return nil, err
	}
	if !r.Unprotected || r.ChainID != nil {
		return encoded, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, err
	}
	fields[ParamChainID] = json.RawMessage("null")
	return json.Marshal(fields)
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := Request{Unprotected: r.Unprotected}
	if r.From != nil {
		from := *r.From
		out.From = &from
	}
	if r.To != nil {
		to := *r.To
		out.To = &to
	}
	if r.Gas != nil {
		gas := *r.Gas
		out.Gas = &gas
	}
	if r.Nonce != nil {
		nonce := *r.Nonce
		out.Nonce = &nonce
	}
	out.GasPrice = cloneBig(r.GasPrice)
	out.Value = cloneBig(r.Value)
	out.ChainID = cloneBig(r.ChainID)
	if r.Data != nil {
		data := make(hexutil.Bytes, len(*r.Data))
		copy(data, *r.Data)
		out.Data = &data
	}
	return out
}

// withoutChainID returns a copy of r as sent to eth_estimateGas.
func (r Request) withoutChainID() Request {
	out := r.Clone()
	out.ChainID = nil
	out.Unprotected = false
	return out
}

func cloneBig(b *hexutil.Big) *hexutil.Big {
	if b == nil {
		return nil
	}
	c := new(hexutil.Big)
	c.ToInt().Set(b.ToInt())
	return c
}

// ParseRequest decodes a transaction object such as a JSON-RPC parameter or a
// command line argument.
func ParseRequest(input []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(input, &r); err != nil {
		if _, ok := web3err.From(err); ok {
			return Request{}, err
		}
		return Request{}, web3err.Value("decode transaction: %v", err)
	}
	return r, nil
}

// AssertValidParams fails with a value error naming the first parameter, in sorted
// order, that is not a transaction parameter.
func AssertValidParams[V any](params map[string]V) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !validParams[k] {
			return web3err.Value("%s is not a valid transaction parameter", k)
		}
	}
	return nil
}

// ExtractValidParams returns the subset of params that are transaction parameters.
func ExtractValidParams[V any](params map[string]V) map[string]V {
	out := make(map[string]V, len(params))
	for k, v := range params {
		if validParams[k] {
			out[k] = v
		}
	}
	return out
}
