package helper

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid"
)

// BearerPrefix is prepended to every generated token value. The backend
// expects the full "Bearer <hex>" string in the Authorization header, so the
// prefix is part of the stored value, not transport decoration.
const BearerPrefix = "Bearer "

// GenerateBearerToken generates an opaque bearer token value,
// "Bearer " followed by 32 hex characters.
func GenerateBearerToken() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return BearerPrefix + hex.EncodeToString(bytes)
}

// GenerateRandomString generates a cryptographically secure random string
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:length]
}

func GenerateRequestID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
