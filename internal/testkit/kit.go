// Package testkit provides shared fixtures for exercising the analysis
// pipeline without external services: a deterministic RNG adapter, an
// in-memory run store, and a synthetic line-list generator.
package testkit

import (
	"context"
	"math/rand"

	"incuba/ports"
)

// TestKit wires the in-memory adapters used by tests and DB-less serving
type TestKit struct {
	store *InMemoryRunStore // Shared store instance
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{store: NewInMemoryRunStore()}
}

// RunStore returns the shared in-memory run store
func (t *TestKit) RunStore() ports.RunStore {
	return t.store
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// RNGAdapter implements the RNGPort interface
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// StreamSeed derives a substream seed by hashing the stream name into the
// base seed. Only the name and base seed enter the derivation, so reruns
// with the same configuration reproduce every substream.
func (r *RNGAdapter) StreamSeed(ctx context.Context, name string, baseSeed int64) (int64, error) {
	if name == "" {
		return baseSeed, nil
	}
	return int64(hashString(name)) + baseSeed, nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
