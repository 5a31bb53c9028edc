package utils

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// ByteToHex converts a byte slice to a hexadecimal string prefixed with "0x".
func ByteToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// WriteJSONLine writes v as a single line of JSON to w.
func WriteJSONLine(w io.Writer, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
