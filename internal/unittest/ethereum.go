package unittest

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
)

// PrivateKeyFixture generates a new random private key for use in tests.
// It fails the test immediately if key generation does not succeed.
func PrivateKeyFixture(t *testing.T) *ecdsa.PrivateKey {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err, "failed to generate private key")
	return priv
}

// GetBalance retrieves the latest balance of address through caller.
func GetBalance(
	t *testing.T,
	ctx context.Context,
	caller provider.Provider,
	address common.Address,
) *big.Int {
	raw, err := caller.Call(ctx, model.EthGetBalance, []any{address.Hex(), model.EthLatestBlock})
	require.NoError(t, err)
	var balHex string
	require.NoError(t, json.Unmarshal(raw, &balHex))
	return HexToBigInt(t, balHex)
}

func HexToBigInt(t *testing.T, hexStr string) *big.Int {
	bi, ok := new(big.Int).SetString(strings.TrimPrefix(hexStr, "0x"), 16)
	require.True(t, ok, "failed to convert hex to big.Int: %s", hexStr)
	return bi
}
