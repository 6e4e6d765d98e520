package tiercache

import "sync/atomic"

// Stats is a point-in-time view of one namespace.
type Stats struct {
	MemoryHits    uint64
	DurableHits   uint64
	RemoteHits    uint64
	Misses        uint64
	TotalRequests uint64
	// HitRate is (MemoryHits+DurableHits+RemoteHits)/TotalRequests, 0 with no requests.
	HitRate float64

	Evictions     uint64
	MemoryBytes   int64
	MemoryEntries int
}

type counters struct {
	memoryHits  atomic.Uint64
	durableHits atomic.Uint64
	remoteHits  atomic.Uint64
	misses      atomic.Uint64
	total       atomic.Uint64
	evictions   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		MemoryHits:    c.memoryHits.Load(),
		DurableHits:   c.durableHits.Load(),
		RemoteHits:    c.remoteHits.Load(),
		Misses:        c.misses.Load(),
		TotalRequests: c.total.Load(),
		Evictions:     c.evictions.Load(),
	}
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.MemoryHits+s.DurableHits+s.RemoteHits) / float64(s.TotalRequests)
	}
	return s
}

func (c *counters) reset() {
	c.memoryHits.Store(0)
	c.durableHits.Store(0)
	c.remoteHits.Store(0)
	c.misses.Store(0)
	c.total.Store(0)
	c.evictions.Store(0)
}
