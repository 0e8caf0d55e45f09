package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// ShortHash returns the first 12 hex characters of the content hash,
// enough to keep cache keys collision-resistant without bloating them.
func ShortHash(input string) string {
	return HashString(input)[:12]
}
