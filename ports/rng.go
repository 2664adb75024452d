package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic runs
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// StreamSeed derives the seed for a named substream, e.g. one per fitted
	// family. The derivation uses only the name and the base seed, so a rerun
	// with the same configuration reproduces every substream exactly.
	StreamSeed(ctx context.Context, name string, baseSeed int64) (int64, error)
}
