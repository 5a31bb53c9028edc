package provider

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JWTFileName is the name of the secret file written by GenerateJWTSecret.
const JWTFileName = "jwt.hex"

// GenerateJWTSecret creates a 32-byte random JWT secret for authenticated RPC.
// The secret is written hex-encoded to a file named JWTFileName in dataDir with
// 0600 permissions, creating dataDir if needed. Returns the path to the secret file.
func GenerateJWTSecret(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}

	jwtPath := filepath.Join(dataDir, JWTFileName)
	content := hex.EncodeToString(secret)
	if err := os.WriteFile(jwtPath, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("write jwt secret: %w", err)
	}

	return jwtPath, nil
}

// ReadJWTSecret reads a hex-encoded 32-byte secret from path.
// An optional 0x prefix and surrounding whitespace are accepted.
func ReadJWTSecret(path string) ([32]byte, error) {
	var secret [32]byte

	raw, err := os.ReadFile(path)
	if err != nil {
		return secret, fmt.Errorf("read jwt: %w", err)
	}

	jwtHex := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
	jwtBytes, err := hex.DecodeString(jwtHex)
	if err != nil {
		return secret, fmt.Errorf("decode jwt: %w", err)
	}

	// jwt secret must be exactly 32 bytes
	if len(jwtBytes) != 32 {
		return secret, fmt.Errorf("jwt secret must be 32 bytes, got %d", len(jwtBytes))
	}

	copy(secret[:], jwtBytes)
	return secret, nil
}
