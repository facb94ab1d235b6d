package helper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateBearerToken(t *testing.T) {
	token := GenerateBearerToken()

	assert.True(t, strings.HasPrefix(token, BearerPrefix))
	assert.Len(t, strings.TrimPrefix(token, BearerPrefix), 32)
}

func TestGenerateBearerToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := GenerateBearerToken()
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestGet8BytesHash(t *testing.T) {
	h := Get8BytesHash("Bearer abc")

	assert.Len(t, h, 16)
	assert.Equal(t, h, Get8BytesHash("Bearer abc"))
	assert.NotEqual(t, h, Get8BytesHash("Bearer xyz"))
}
