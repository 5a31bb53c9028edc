package unittest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

// AuthenticatedServer is an HTTP JSON-RPC server that only answers requests
// carrying a JWT signed with its secret.
type AuthenticatedServer struct {
	URL      string
	rejected atomic.Int64
}

// Rejected returns how many requests failed authentication.
func (s *AuthenticatedServer) Rejected() int64 {
	return s.rejected.Load()
}

// NewAuthenticatedServer serves service under namespace behind JWT authentication
// with secret. The server is closed when the test ends.
func NewAuthenticatedServer(t *testing.T, secret [32]byte, namespace string, service any) *AuthenticatedServer {
	t.Helper()

	rpcServer := rpc.NewServer()
	require.NoError(t, rpcServer.RegisterName(namespace, service))

	s := &AuthenticatedServer{}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifyJWT(r, secret); err != nil {
			s.rejected.Add(1)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		rpcServer.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		httpServer.Close()
		rpcServer.Stop()
	})

	s.URL = httpServer.URL
	return s
}

func verifyJWT(r *http.Request, secret [32]byte) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errors.New("missing token")
	}
	_, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return secret[:], nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}
