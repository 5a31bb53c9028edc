package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thep2p/go-web3-core/internal/model"
)

// DefaultCachedMethods return values that never change for a connected chain.
var DefaultCachedMethods = []string{model.NetVersion, model.EthChainID}

// Cache answers repeated requests for the given methods from an LRU of at most size
// results, keyed by method and params. Only successful, non-null results are stored.
// With no methods, DefaultCachedMethods are cached.
func Cache(size int, methods ...string) (Middleware, error) {
	if len(methods) == 0 {
		methods = DefaultCachedMethods
	}
	cacheable := mapset.NewSet(methods...)

	results, err := lru.New[string, json.RawMessage](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if !cacheable.Contains(method) {
				return next(ctx, method, params)
			}

			key, err := cacheKey(method, params)
			if err != nil {
				return next(ctx, method, params)
			}
			if cached, ok := results.Get(key); ok {
				return cached, nil
			}

			result, err := next(ctx, method, params)
			if err != nil {
				return nil, err
			}
			if len(result) > 0 && string(result) != "null" {
				results.Add(key, result)
			}
			return result, nil
		}
	}, nil
}

func cacheKey(method string, params []any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return method + ":" + string(encoded), nil
}
