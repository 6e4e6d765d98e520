package tiercache

import (
	"math"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	Entry
	seq uint64 // insertion order, breaks WrittenAt ties
}

// memoryTier is the in-process tier of one namespace. All access goes
// through mu; no I/O happens while it is held. used always equals the sum
// of Size over items.
//
// epoch advances on every Set, Delete and Clear. A backfill carries the epoch
// observed at its memory miss and is dropped if the epoch moved while the
// lower tier was being read, so a slow read can never replace a newer write
// or resurrect a deleted key.
type memoryTier struct {
	mu    sync.Mutex
	items map[string]*memEntry
	used  int64
	max   int64 // 0 => unbounded
	seq   uint64
	epoch uint64
}

// putResult describes one insert.
type putResult struct {
	evicted  int
	freed    int64
	admitted bool
}

func newMemoryTier(maxBytes int64) *memoryTier {
	return &memoryTier{
		items: make(map[string]*memEntry),
		max:   maxBytes,
	}
}

// get returns a valid entry, or purges an invalid one and reports why.
// epoch is the tier epoch at lookup; pass it to backfill.
func (m *memoryTier) get(key, version string, now time.Time) (e Entry, reason string, epoch uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	me, found := m.items[key]
	if !found {
		return Entry{}, "", m.epoch, false
	}
	if reason := invalidReason(me.Entry, version, now); reason != "" {
		m.removeLocked(key)
		return Entry{}, reason, m.epoch, false
	}
	return me.Entry, "", m.epoch, true
}

// put inserts e under key on behalf of a Set.
func (m *memoryTier) put(key string, e Entry) putResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return m.insertLocked(key, e)
}

// backfill inserts e copied up from a lower tier. It reports false, and
// changes nothing, when a Set, Delete or Clear ran since epoch.
func (m *memoryTier) backfill(key string, e Entry, epoch uint64) (putResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return putResult{}, false
	}
	return m.insertLocked(key, e), true
}

// current reports whether no Set, Delete or Clear ran since epoch.
func (m *memoryTier) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch
}

// insertLocked evicts the oldest quarter of resident entries (repeatedly, if
// one batch is not enough) when the budget would be exceeded. An entry larger
// than the whole budget is not admitted.
func (m *memoryTier) insertLocked(key string, e Entry) putResult {
	// replacement: the old copy goes away regardless
	m.removeLocked(key)

	var res putResult
	if m.max > 0 && e.Size > m.max {
		return res
	}
	for m.max > 0 && m.used+e.Size > m.max && len(m.items) > 0 {
		n, f := m.evictBatchLocked()
		res.evicted += n
		res.freed += f
	}

	m.seq++
	m.items[key] = &memEntry{Entry: e, seq: m.seq}
	m.used += e.Size
	res.admitted = true
	return res
}

// evictBatchLocked drops ceil(25%) of resident entries, oldest first.
func (m *memoryTier) evictBatchLocked() (int, int64) {
	type cand struct {
		key string
		me  *memEntry
	}
	cands := make([]cand, 0, len(m.items))
	for k, me := range m.items {
		cands = append(cands, cand{key: k, me: me})
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i].me, cands[j].me
		if a.WrittenAt != b.WrittenAt {
			return a.WrittenAt < b.WrittenAt
		}
		return a.seq < b.seq
	})

	n := int(math.Ceil(float64(len(cands)) * evictFraction))
	var freed int64
	for _, c := range cands[:n] {
		freed += c.me.Size
		m.removeLocked(c.key)
	}
	return n, freed
}

// remove drops key on behalf of a Delete.
func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	m.epoch++
	m.removeLocked(key)
	m.mu.Unlock()
}

func (m *memoryTier) removeLocked(key string) {
	if me, ok := m.items[key]; ok {
		m.used -= me.Size
		delete(m.items, key)
	}
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	m.epoch++
	m.items = make(map[string]*memEntry)
	m.used = 0
	m.mu.Unlock()
}

// purgeInvalid removes every entry failing validation at now.
func (m *memoryTier) purgeInvalid(version string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for k, me := range m.items {
		if invalidReason(me.Entry, version, now) != "" {
			m.removeLocked(k)
			purged++
		}
	}
	return purged
}

func (m *memoryTier) usage() (bytes int64, entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used, len(m.items)
}

// sumSizes recomputes the resident total; used to check the running counter.
func (m *memoryTier) sumSizes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, me := range m.items {
		total += me.Size
	}
	return total
}
