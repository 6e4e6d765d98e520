package tiercache

import "time"

const (
	defaultTTL           = 10 * time.Minute
	defaultSweepInterval = 5 * time.Minute
	defaultBatchWorkers  = 16

	// evictFraction is the share of resident entries dropped per eviction batch.
	evictFraction = 0.25
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
