package tiercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/tiercache/internal/keys"
	"github.com/unkn0wn-root/tiercache/provider"
	"github.com/unkn0wn-root/tiercache/versionstore"
)

// Options configure a single namespace Service.
// Only Config.Kind is required; others have sensible defaults.
type Options struct {
	Config NamespaceConfig

	Durable  DurableStore       // nil => durable tier disabled
	Remote   provider.Provider  // nil => remote tier disabled
	Versions versionstore.Store // nil => in-process generations

	Logger Logger      // if nil, NopLogger is used
	Hooks  Hooks       // if nil, NopHooks is used
	Clock  clock.Clock // nil => wall clock

	// SweepInterval drives the namespace's own sweep loop. 0 => 5m, < 0 disables
	// the loop (the Registry sweeps on its own schedule).
	SweepInterval time.Duration
	// BatchWorkers bounds GetBatch/SetBatch/Preload fan-out. 0 => 16.
	BatchWorkers int
}

// Service is the tiered cache of one namespace. Values are opaque encoded
// bytes; use Typed for a codec-backed view. Returned slices are shared with
// the memory tier and must not be mutated.
type Service struct {
	cfg      NamespaceConfig
	prefix   string
	mem      *memoryTier
	durable  DurableStore
	remote   provider.Provider
	versions versionstore.Store
	log      Logger
	hooks    Hooks
	clock    clock.Clock
	workers  int

	version atomic.Pointer[string] // effective version tag
	stats   counters

	// background sweep
	ticker    *clock.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		prefix:   keys.Prefix(string(cfg.Kind)),
		mem:      newMemoryTier(cfg.MaxMemoryBytes),
		durable:  opts.Durable,
		remote:   opts.Remote,
		versions: opts.Versions,
		workers:  coalesce(opts.BatchWorkers, defaultBatchWorkers),
	}
	if s.versions == nil {
		s.versions = versionstore.NewLocal()
	}
	s.log = WithFields(coalesce[Logger](opts.Logger, NopLogger{}), Fields{"namespace": string(cfg.Kind)})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.clock = coalesce[clock.Clock](opts.Clock, clock.New())

	s.refreshVersion(context.Background())

	interval := coalesce(opts.SweepInterval, defaultSweepInterval)
	if interval > 0 {
		s.ticker = s.clock.Ticker(interval)
		s.stopCh = make(chan struct{})
		s.closeWg.Add(1)
		go s.sweepLoop()
	}
	return s, nil
}

// Kind returns the namespace this service owns.
func (s *Service) Kind() Kind { return s.cfg.Kind }

// Config returns the namespace configuration.
func (s *Service) Config() NamespaceConfig { return s.cfg }

// Version returns the effective version tag new entries are written with.
func (s *Service) Version() string { return *s.version.Load() }

// Close stops the sweep loop. Shared tiers are owned by the caller.
func (s *Service) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.closeWg.Wait()
			s.ticker.Stop()
		}
	})
	return nil
}

// Get resolves key through memory, durable and remote tiers in that order.
// A durable hit is backfilled into memory; a remote hit into durable and memory.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	s.stats.total.Add(1)
	data, t, ok := s.lookup(ctx, key)
	if !ok {
		s.stats.misses.Add(1)
		return nil, false
	}
	switch t {
	case TierMemory:
		s.stats.memoryHits.Add(1)
	case TierDurable:
		s.stats.durableHits.Add(1)
	case TierRemote:
		s.stats.remoteHits.Add(1)
	}
	return data, true
}

// lookup is Get without request accounting; it reports the tier that hit.
// Backfills are skipped when a Set, Delete or Clear lands while a lower tier
// is being read.
func (s *Service) lookup(ctx context.Context, key string) ([]byte, Tier, bool) {
	sk := s.storageKey(key)
	ver := s.Version()

	e, reason, epoch, ok := s.mem.get(sk, ver, s.clock.Now())
	if ok {
		return e.Data, TierMemory, true
	}
	if reason != "" {
		s.hooks.SelfHeal(TierMemory, sk, reason)
	}

	if s.durable != nil {
		if e, _, ok := s.readTier(ctx, TierDurable, sk, ver); ok {
			s.backfillMemory(sk, e, epoch)
			return e.Data, TierDurable, true
		}
	}

	if s.remote != nil {
		if e, raw, ok := s.readTier(ctx, TierRemote, sk, ver); ok {
			if s.mem.current(epoch) {
				s.writeDurable(ctx, sk, raw)
				s.backfillMemory(sk, e, epoch)
			}
			return e.Data, TierRemote, true
		}
	}
	return nil, 0, false
}

// Set writes data under key to every tier. ttl <= 0 uses the namespace
// default. Only a failure to frame the entry is returned; tier write
// failures are logged and absorbed.
func (s *Service) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	sk := s.storageKey(key)
	e := NewEntry(bytes.Clone(data), s.clock.Now(), ttl, s.Version())

	raw, err := encodeEntry(e)
	if err != nil {
		return &SerializationError{Namespace: string(s.cfg.Kind), Key: key, Err: err}
	}

	s.insertMemory(sk, e)
	s.writeDurable(ctx, sk, raw)
	s.writeRemote(ctx, sk, raw, ttl)
	return nil
}

// Delete removes key from all tiers. Idempotent.
func (s *Service) Delete(ctx context.Context, key string) {
	sk := s.storageKey(key)
	s.mem.remove(sk)
	if s.durable != nil {
		if err := s.durable.Delete(ctx, sk); err != nil {
			s.tierError(TierDurable, "delete", sk, err)
		}
	}
	if s.remote != nil {
		if err := s.remote.Del(ctx, sk); err != nil {
			s.tierError(TierRemote, "delete", sk, err)
		}
	}
}

// Clear drops every key of this namespace from all tiers and resets stats.
// Other namespaces sharing the same stores are untouched.
func (s *Service) Clear(ctx context.Context) {
	s.mem.clear()

	if s.durable != nil {
		ks, err := s.durable.ListKeysWithPrefix(ctx, s.prefix)
		if err != nil {
			s.tierError(TierDurable, "list", s.prefix, err)
		}
		for _, k := range ks {
			if err := s.durable.Delete(ctx, k); err != nil {
				s.tierError(TierDurable, "delete", k, err)
			}
		}
	}

	if s.remote != nil {
		if pd, ok := s.remote.(provider.PrefixDeleter); ok {
			if _, err := pd.DelPrefix(ctx, s.prefix); err != nil {
				s.tierError(TierRemote, "clear", s.prefix, err)
			}
		} else if _, err := s.BumpVersion(ctx); err != nil {
			s.log.Warn("remote clear fallback failed", Fields{"err": err})
		}
	}

	s.stats.reset()
	s.log.Info("namespace cleared", nil)
}

// BumpVersion advances the namespace generation; every entry written before
// it becomes invalid in every tier.
func (s *Service) BumpVersion(ctx context.Context) (string, error) {
	g, err := s.versions.Bump(ctx, string(s.cfg.Kind))
	if err != nil {
		return s.Version(), fmt.Errorf("bump version of %s: %w", s.cfg.Kind, err)
	}
	v := s.effectiveVersion(g)
	s.version.Store(&v)
	s.log.Info("namespace version bumped", Fields{"version": v})
	return v, nil
}

// Stats returns counters and memory usage of this namespace.
func (s *Service) Stats() Stats {
	st := s.stats.snapshot()
	st.MemoryBytes, st.MemoryEntries = s.mem.usage()
	return st
}

func (s *Service) storageKey(key string) string {
	return s.prefix + key
}

func (s *Service) effectiveVersion(gen uint64) string {
	if gen == 0 {
		return s.cfg.Version
	}
	return s.cfg.Version + "#" + strconv.FormatUint(gen, 10)
}

// refreshVersion picks up generation bumps made elsewhere (e.g. another
// process sharing a Redis version store).
func (s *Service) refreshVersion(ctx context.Context) {
	g, err := s.versions.Current(ctx, string(s.cfg.Kind))
	if err != nil {
		s.log.Warn("version snapshot error", Fields{"err": err})
		if s.version.Load() != nil {
			return
		}
		g = 0
	}
	v := s.effectiveVersion(g)
	s.version.Store(&v)
}

// readTier reads and validates sk from a lower tier. Undecodable or invalid
// bytes are deleted from that tier and reported as a miss.
func (s *Service) readTier(ctx context.Context, t Tier, sk, ver string) (Entry, []byte, bool) {
	var (
		raw   []byte
		found bool
		err   error
	)
	switch t {
	case TierDurable:
		raw, found, err = s.durable.Read(ctx, sk)
	case TierRemote:
		raw, found, err = s.remote.Get(ctx, sk)
	}
	if err != nil {
		s.tierError(t, "read", sk, err)
		return Entry{}, nil, false
	}
	if !found {
		return Entry{}, nil, false
	}

	e, err := decodeEntry(raw)
	reason := "corrupt"
	if err == nil {
		reason = invalidReason(e, ver, s.clock.Now())
	}
	if reason != "" {
		s.hooks.SelfHeal(t, sk, reason)
		s.deleteFromTier(ctx, t, sk)
		return Entry{}, nil, false
	}
	// detach from the tier's buffer before it is shared by memory
	e.Data = bytes.Clone(e.Data)
	return e, raw, true
}

func (s *Service) deleteFromTier(ctx context.Context, t Tier, sk string) {
	var err error
	switch t {
	case TierDurable:
		err = s.durable.Delete(ctx, sk)
	case TierRemote:
		err = s.remote.Del(ctx, sk)
	}
	if err != nil {
		s.tierError(t, "delete", sk, err)
	}
}

func (s *Service) insertMemory(sk string, e Entry) {
	s.afterInsert(sk, e, s.mem.put(sk, e))
}

func (s *Service) backfillMemory(sk string, e Entry, epoch uint64) {
	res, ok := s.mem.backfill(sk, e, epoch)
	if !ok {
		s.log.Debug("backfill skipped; key changed during lower tier read", Fields{"key": keys.Redact(sk)})
		return
	}
	s.afterInsert(sk, e, res)
}

func (s *Service) afterInsert(sk string, e Entry, res putResult) {
	if res.evicted > 0 {
		s.stats.evictions.Add(uint64(res.evicted))
		s.hooks.Evicted(string(s.cfg.Kind), res.evicted, res.freed)
		s.log.Debug("memory eviction", Fields{"evicted": res.evicted, "freed": res.freed})
	}
	if !res.admitted {
		s.log.Debug("entry larger than memory budget; kept in lower tiers only",
			Fields{"key": keys.Redact(sk), "size": e.Size, "budget": s.cfg.MaxMemoryBytes})
	}
}

// writeDurable is best-effort. Capacity exhaustion sweeps this namespace's
// invalid durable entries and abandons the write.
func (s *Service) writeDurable(ctx context.Context, sk string, raw []byte) {
	if s.durable == nil {
		return
	}
	err := s.checkDurableBudget(ctx, sk, int64(len(raw)))
	if err == nil {
		err = s.durable.Write(ctx, sk, raw)
	}
	if err == nil {
		return
	}
	if errors.Is(err, ErrDurableFull) {
		purged := s.sweepDurable(ctx)
		s.hooks.DurableFull(string(s.cfg.Kind), purged)
		s.log.Warn("durable tier full; write abandoned", Fields{"key": keys.Redact(sk), "purged": purged})
		return
	}
	s.tierError(TierDurable, "write", sk, err)
}

func (s *Service) checkDurableBudget(ctx context.Context, sk string, size int64) error {
	if s.cfg.MaxDurableBytes <= 0 {
		return nil
	}
	sizer, ok := s.durable.(DurableSizer)
	if !ok {
		return nil
	}
	used, err := sizer.BytesWithPrefix(ctx, s.prefix, sk)
	if err != nil {
		// usage unknown; let the store decide
		s.tierError(TierDurable, "list", s.prefix, err)
		return nil
	}
	if used+size > s.cfg.MaxDurableBytes {
		return fmt.Errorf("namespace %s: %d+%d > %d bytes: %w",
			s.cfg.Kind, used, size, s.cfg.MaxDurableBytes, ErrDurableFull)
	}
	return nil
}

func (s *Service) writeRemote(ctx context.Context, sk string, raw []byte, ttl time.Duration) {
	if s.remote == nil {
		return
	}
	if err := s.remote.Set(ctx, sk, raw, ttl); err != nil {
		s.tierError(TierRemote, "write", sk, err)
	}
}

func (s *Service) tierError(t Tier, op, sk string, err error) {
	s.hooks.TierError(t, op, sk, err)
	s.log.Warn("tier "+op+" failed", Fields{"tier": t.String(), "key": keys.Redact(sk), "err": err})
}
