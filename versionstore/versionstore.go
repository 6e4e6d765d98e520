// Package versionstore keeps a per-namespace generation counter. A namespace's
// effective version tag is its configured version plus the current generation,
// so bumping the generation invalidates every entry written before it.
package versionstore

import (
	"context"
)

// Store abstracts where generations live.
// Use Local (default) for in-process generations, or Redis to share bumps
// across processes and keep them across restarts.
type Store interface {
	// Current returns the generation of namespace; missing => 0.
	Current(ctx context.Context, namespace string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, namespace string) (uint64, error)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
