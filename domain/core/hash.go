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

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	CohortHash Hash
	ConfigHash Hash
)

// Constructors
func NewCohortHash(data []byte) CohortHash { return CohortHash(NewHash(data)) }
func NewConfigHash(data []byte) ConfigHash { return ConfigHash(NewHash(data)) }

// String conversions
func (h CohortHash) String() string { return Hash(h).String() }
func (h ConfigHash) String() string { return Hash(h).String() }

// ComputeCohortHash fingerprints a cohort from its record bound quadruples.
// Records are hashed in the order given; the same records in the same order
// always produce the same hash.
func ComputeCohortHash(bounds [][4]float64) CohortHash {
	var data strings.Builder
	for _, b := range bounds {
		data.WriteString(fmt.Sprintf("%.9f|%.9f|%.9f|%.9f;", b[0], b[1], b[2], b[3]))
	}
	return NewCohortHash([]byte(data.String()))
}

// ComputeConfigHash fingerprints a configuration from sorted key/value pairs.
func ComputeConfigHash(settings map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%v;", settings[key]))
	}

	return NewConfigHash([]byte(data.String()))
}
