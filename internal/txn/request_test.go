package txn_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/txn"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

func TestParseRequest(t *testing.T) {
	req, err := txn.ParseRequest([]byte(`{
		"from": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"to": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"value": "0xde0b6b3a7640000",
		"gas": "0x5208",
		"gasPrice": "0x3b9aca00",
		"data": "0x",
		"nonce": "0x0",
		"chainId": "0x4"
	}`))
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"), *req.To)
	require.Equal(t, uint64(21000), uint64(*req.Gas))
	require.Equal(t, int64(4), req.ChainID.ToInt().Int64())
	require.False(t, req.Unprotected)
}

func TestParseRequestRejectsUnknownParams(t *testing.T) {
	_, err := txn.ParseRequest([]byte(`{"to": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", "maxFee": "0x1"}`))
	require.ErrorIs(t, err, web3err.ErrValue)
	require.EqualError(t, err, "maxFee is not a valid transaction parameter")

	_, err = txn.ParseRequest([]byte(`{"gas": "not-hex"}`))
	require.ErrorIs(t, err, web3err.ErrValue)

	_, err = txn.ParseRequest([]byte(`[1, 2]`))
	require.ErrorIs(t, err, web3err.ErrValue)
}

func TestNullChainIDMarksUnprotected(t *testing.T) {
	req, err := txn.ParseRequest([]byte(`{"nonce": "0x1", "chainId": null}`))
	require.NoError(t, err)
	require.True(t, req.Unprotected)
	require.Nil(t, req.ChainID)

	encoded, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t, `{"nonce": "0x1", "chainId": null}`, string(encoded))

	again, err := txn.ParseRequest(encoded)
	require.NoError(t, err)
	require.Equal(t, req, again)
}

func TestAssertValidParams(t *testing.T) {
	require.NoError(t, txn.AssertValidParams(map[string]any{
		"from": "", "to": "", "gas": 1, "gasPrice": 1, "value": 1, "data": "", "nonce": 1, "chainId": 1,
	}))

	err := txn.AssertValidParams(map[string]int{"value": 1, "zeta": 1, "alpha": 2})
	require.ErrorIs(t, err, web3err.ErrValue)
	require.EqualError(t, err, "alpha is not a valid transaction parameter")
}

func TestExtractValidParams(t *testing.T) {
	got := txn.ExtractValidParams(map[string]any{"to": "0x1", "value": 5, "extra": true, "hash": "0x2"})
	require.Equal(t, map[string]any{"to": "0x1", "value": 5}, got)
}

func TestCloneIsDeep(t *testing.T) {
	req, err := txn.ParseRequest([]byte(`{"value": "0x10", "data": "0x0102"}`))
	require.NoError(t, err)

	clone := req.Clone()
	clone.Value.ToInt().SetInt64(99)
	(*clone.Data)[0] = 0xff

	require.Equal(t, int64(16), req.Value.ToInt().Int64())
	require.Equal(t, byte(0x01), (*req.Data)[0])
}
