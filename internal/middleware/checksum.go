package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// addressFirstMethods take an account address as their first parameter.
var addressFirstMethods = map[string]bool{
	model.EthGetBalance:          true,
	model.EthGetCode:             true,
	model.EthGetTransactionCount: true,
}

// ChecksumAddresses validates the addresses of outbound requests and rewrites them
// in EIP-55 checksum form. It covers the from and to fields of transaction objects
// and the account argument of balance, code and nonce queries. An address that is
// malformed, or mixed-case with a wrong checksum, fails with a validation error
// before anything is sent.
func ChecksumAddresses() Middleware {
	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if len(params) == 0 {
				return next(ctx, method, params)
			}

			switch {
			case txObjectMethods[method]:
				obj, err := txObject(params[0])
				if err != nil {
					return nil, web3err.Value("%s: %v", method, err)
				}
				for _, field := range []string{model.TxFrom, model.TxTo} {
					raw, ok := obj[field]
					if !ok || provider.IsNull(raw) {
						continue
					}
					var s string
					if err := json.Unmarshal(raw, &s); err != nil {
						return nil, web3err.Validation("%s address must be a string", field)
					}
					normalized, err := ChecksumAddress(s)
					if err != nil {
						return nil, err
					}
					obj[field], _ = json.Marshal(normalized)
				}
				params = withFirst(params, obj)

			case addressFirstMethods[method]:
				var s string
				switch v := params[0].(type) {
				case string:
					s = v
				case common.Address:
					s = v.Hex()
				default:
					return next(ctx, method, params)
				}
				normalized, err := ChecksumAddress(s)
				if err != nil {
					return nil, err
				}
				params = withFirst(params, normalized)
			}

			return next(ctx, method, params)
		}
	}
}

// ChecksumAddress validates s and returns its EIP-55 form.
func ChecksumAddress(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") {
		return "", web3err.Validation("address %q must be 0x-prefixed", s)
	}
	if !common.IsHexAddress(s) {
		return "", web3err.Validation("%q is not a valid address", s)
	}

	checksummed := common.HexToAddress(s).Hex()
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != checksummed {
		return "", web3err.Validation("address %q has an invalid EIP-55 checksum", s)
	}
	return checksummed, nil
}
