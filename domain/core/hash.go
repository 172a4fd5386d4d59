package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, enough to tell runs apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// HashInts fingerprints a set of integer keys independent of their order.
// Used to fingerprint transect selections.
func HashInts(label string, values []int) Hash {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	var b strings.Builder
	b.WriteString(label)
	for _, v := range sorted {
		fmt.Fprintf(&b, "|%d", v)
	}
	return NewHash([]byte(b.String()))
}
