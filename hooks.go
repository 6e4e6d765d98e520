package tiercache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the cache calls them on hot paths.
type Hooks interface {
	// An entry was purged from tier on read.
	// reason ∈ {"expired", "version_mismatch", "corrupt", "value_decode"}
	// value_decode is reported with TierAll.
	SelfHeal(tier Tier, storageKey, reason string)

	// The memory tier dropped count entries (freed bytes) to make room.
	Evicted(namespace string, count int, freed int64)

	// A durable/remote operation failed and was absorbed.
	// op ∈ {"read", "write", "delete", "list", "clear"}
	TierError(tier Tier, op, storageKey string, err error)

	// A durable write was refused for capacity; purged invalid entries were swept.
	DurableFull(namespace string, purged int)

	// A sweep finished.
	Swept(namespace string, memoryPurged, durablePurged int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(Tier, string, string)         {}
func (NopHooks) Evicted(string, int, int64)            {}
func (NopHooks) TierError(Tier, string, string, error) {}
func (NopHooks) DurableFull(string, int)               {}
func (NopHooks) Swept(string, int, int)                {}

// MultiHooks fans each event out to every member in order.
type MultiHooks []Hooks

func (m MultiHooks) SelfHeal(t Tier, k, reason string) {
	for _, h := range m {
		h.SelfHeal(t, k, reason)
	}
}

func (m MultiHooks) Evicted(ns string, n int, freed int64) {
	for _, h := range m {
		h.Evicted(ns, n, freed)
	}
}

func (m MultiHooks) TierError(t Tier, op, k string, err error) {
	for _, h := range m {
		h.TierError(t, op, k, err)
	}
}

func (m MultiHooks) DurableFull(ns string, purged int) {
	for _, h := range m {
		h.DurableFull(ns, purged)
	}
}

func (m MultiHooks) Swept(ns string, mem, dur int) {
	for _, h := range m {
		h.Swept(ns, mem, dur)
	}
}
