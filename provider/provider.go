// Package provider defines the remote tier used by tiercache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). Values are framed entries carrying their
// own timestamp, TTL and version tag, so a provider that ignores the TTL hint
// (bigcache, NATS KV with bucket-level TTL) stays correct; stale values are
// rejected on read.
//
// Important: the keyspace "tc:<ns>:" is owned by tiercache. External code MUST
// NOT write values under it.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned by Set when the store refused the write under pressure.
var ErrRejected = errors.New("provider: write rejected")

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL hint; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key (best-effort). Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// PrefixDeleter is implemented by providers that can drop a whole keyspace.
// Namespace Clear uses it; without it the namespace version is bumped instead.
type PrefixDeleter interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}
