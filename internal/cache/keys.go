package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/caserag/ragengine/pkg/utils"
)

const (
	// maxKeyLength caps assembled keys; anything longer collapses to a
	// hash of itself under the same prefix.
	maxKeyLength = 250

	// longStringCutoff is where raw string arguments stop being embedded
	// verbatim and get truncated with a hash suffix instead.
	longStringCutoff = 48
	longStringKeep   = 32
)

// Key derives a deterministic cache key from an operation prefix and its
// arguments. Equal arguments always produce equal keys: map arguments are
// encoded with sorted keys, complex values are content-hashed, and long
// strings are truncated with a hash suffix so key length stays bounded.
func Key(prefix string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, prefix)
	for _, arg := range args {
		parts = append(parts, encodeArg(arg))
	}

	key := strings.Join(parts, ":")
	if len(key) > maxKeyLength {
		key = prefix + ":" + utils.HashString(key)
	}
	return key
}

func encodeArg(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "nil"
	case string:
		return encodeString(v)
	case fmt.Stringer:
		return encodeString(v.String())
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case float32, float64:
		return fmt.Sprintf("%g", v)
	case map[string]any:
		return hashMap(v)
	default:
		return hashValue(v)
	}
}

func encodeString(s string) string {
	s = strings.ReplaceAll(s, ":", "_")
	if len(s) <= longStringCutoff {
		return s
	}
	return s[:longStringKeep] + "_" + utils.ShortHash(s)
}

// hashMap serializes entries in sorted key order so keyword-style
// arguments fingerprint identically regardless of insertion order.
func hashMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(encodeArg(m[k]))
		sb.WriteString(";")
	}
	return utils.ShortHash(sb.String())
}

func hashValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return utils.ShortHash(fmt.Sprintf("%#v", v))
	}
	return utils.ShortHash(string(data))
}
