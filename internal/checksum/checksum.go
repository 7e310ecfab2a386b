// Package checksum provides the digests used for cache keys and staleness hashes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for strings.
func SumString(s string) string {
	return Sum([]byte(s))
}

// SumPairs hashes key/value pairs independently of map iteration order.
// Keys and values are length-prefixed so that no two distinct maps collide
// by concatenation.
func SumPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		writeField(h, k)
		writeField(h, pairs[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SumSet hashes a set of strings independently of their order.
func SumSet(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, s := range sorted {
		writeField(h, s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var n [8]byte
	l := uint64(len(s))
	for i := 0; i < 8; i++ {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(s))
}
