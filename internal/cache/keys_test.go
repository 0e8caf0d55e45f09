package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("search", "query text", 10, 0.7)
	k2 := Key("search", "query text", 10, 0.7)
	assert.Equal(t, k1, k2)

	k3 := Key("search", "other query", 10, 0.7)
	assert.NotEqual(t, k1, k3)
}

func TestKeyMapOrderIndependent(t *testing.T) {
	// Maps iterate in random order; the fingerprint must not.
	args := map[string]any{"limit": 10, "threshold": 0.7, "case": "c-42"}
	k1 := Key("search", args)
	for i := 0; i < 32; i++ {
		assert.Equal(t, k1, Key("search", map[string]any{
			"threshold": 0.7, "case": "c-42", "limit": 10,
		}))
	}
}

func TestKeyComplexArgsHashed(t *testing.T) {
	ids := []string{"doc-1", "doc-2", "doc-3"}
	k1 := Key("search", ids)
	k2 := Key("search", []string{"doc-1", "doc-2", "doc-3"})
	assert.Equal(t, k1, k2)

	// A 12-hex-char digest, not the serialized slice.
	suffix := strings.TrimPrefix(k1, "search:")
	assert.Len(t, suffix, 12)
}

func TestKeyLengthCapped(t *testing.T) {
	var args []any
	for i := 0; i < 50; i++ {
		args = append(args, strings.Repeat("a", 40))
	}
	key := Key("op", args...)
	assert.LessOrEqual(t, len(key), maxKeyLength)
	assert.True(t, strings.HasPrefix(key, "op:"))
}

func TestKeyColonsSanitized(t *testing.T) {
	key := Key("emb", "a:b:c")
	assert.Equal(t, "emb:a_b_c", key)
}
