package helper

import (
	"crypto/sha256"
	"encoding/hex"
)

// Get8BytesHash returns the first 8 bytes of the sha256 of value, hex encoded.
// Token values are only ever logged through this.
func Get8BytesHash(value string) string {
	h := sha256.Sum256([]byte(value))

	short := h[:8]

	return hex.EncodeToString(short)
}

func GetHash(value string) string {
	h := sha256.Sum256([]byte(value))

	return hex.EncodeToString(h[:])
}
