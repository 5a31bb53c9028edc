package unittest

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

// RequireRPCReadyWithinTimeout is a test helper that fails if the JSON-RPC server at url does not
// answer net_version within the specified timeout.
func RequireRPCReadyWithinTimeout(t *testing.T, ctx context.Context, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	body := []byte(`{"jsonrpc":"2.0","method":"net_version","params":[],"id":1}`)

	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(150 * time.Millisecond)
	}
	t.Fatalf("RPC not ready at %s within %s", url, timeout)
}

// RequireAddrClosesWithinTimeout is a test helper that fails if nothing stops listening on the
// TCP address addr within the timeout.
func RequireAddrClosesWithinTimeout(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return // closed
		}
		_ = conn.Close()
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("%s did not close within %s", addr, timeout)
}
