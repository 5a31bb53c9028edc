package txn_test

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-web3-core/internal/txn"
)

func u64(v uint64) *hexutil.Uint64 {
	h := hexutil.Uint64(v)
	return &h
}

func bigHex(v int64) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(v))
}

func bytesHex(b []byte) *hexutil.Bytes {
	h := hexutil.Bytes(b)
	return &h
}

func addr(a common.Address) *common.Address {
	return &a
}

// fullRequest is a request that needs no default resolution.
func fullRequest(to *common.Address, chainID int64) txn.Request {
	return txn.Request{
		To:       to,
		Nonce:    u64(9),
		GasPrice: bigHex(20_000_000_000),
		Gas:      u64(21_000),
		Value:    (*hexutil.Big)(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		Data:     bytesHex([]byte{}),
		ChainID:  bigHex(chainID),
	}
}
