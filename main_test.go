package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/unittest"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, logs bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &logs
	err := app.RunContext(context.Background(), append([]string{"web3core"}, args...))
	return out.String(), err
}

func TestEncodeCommand(t *testing.T) {
	key := unittest.PrivateKeyFixture(t)
	to := unittest.RandomAddress(t)
	tx := fmt.Sprintf(`{"to":"%s","nonce":"0x3","gas":"0x5208","gasPrice":"0x3b9aca00","value":"0x1","data":"0x","chainId":"0x539"}`, to.Hex())

	out, err := runApp(t, "--log-level", "warn", "encode", "--key", hex.EncodeToString(crypto.FromECDSA(key)), "--tx", tx)
	require.NoError(t, err)

	var printed struct {
		Raw  string `json:"raw"`
		Hash string `json:"hash"`
		From string `json:"from"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), printed.From)

	raw, err := hexutil.Decode(printed.Raw)
	require.NoError(t, err)
	decoded := new(types.Transaction)
	require.NoError(t, decoded.UnmarshalBinary(raw))
	require.Equal(t, printed.Hash, decoded.Hash().Hex())
	require.Equal(t, to, *decoded.To())
	require.Equal(t, uint64(3), decoded.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(decoded.ChainId()), decoded)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
}

func TestEncodeCommandRequiresFullTransaction(t *testing.T) {
	key := hex.EncodeToString(crypto.FromECDSA(unittest.PrivateKeyFixture(t)))

	_, err := runApp(t, "encode", "--key", key, "--tx", `{"nonce":"0x0"}`)
	require.ErrorIs(t, err, web3err.ErrValue)

	_, err = runApp(t, "encode", "--key", key, "--tx", `{"nonce":"0x0","colour":"red"}`)
	require.ErrorIs(t, err, web3err.ErrValue)

	_, err = runApp(t, "encode", "--key", "not-a-key", "--tx", `{}`)
	require.ErrorContains(t, err, "invalid private key")
}

func TestReceiptCommandRejectsInvalidHash(t *testing.T) {
	// dialing http does not connect, so the hash is checked without a node
	_, err := runApp(t, "--rpc", "http://127.0.0.1:1", "receipt", "--hash", "0x1234")
	require.ErrorContains(t, err, "invalid transaction hash")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "loud", "--rpc", "http://127.0.0.1:1", "estimate")
	require.ErrorContains(t, err, "invalid log level")
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "web3core_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	addr, stop, err := serveMetrics(zerolog.Nop(), "127.0.0.1:0", reg)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "web3core_test_total 1")

	stop()
	unittest.RequireAddrClosesWithinTimeout(t, addr.String(), 5*time.Second)
}
