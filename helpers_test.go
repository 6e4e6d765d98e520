package tiercache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

var errBoom = errors.New("boom")

// memDurable is an in-memory DurableStore with optional capacity and
// injectable failures.
type memDurable struct {
	mu       sync.Mutex
	m        map[string][]byte
	maxBytes int64
	failRead bool
	failAll  bool
	reads    int
	// afterRead, if set, runs once after the next Read has captured its
	// value and released mu.
	afterRead func()
}

var (
	_ DurableStore = (*memDurable)(nil)
	_ DurableSizer = (*memDurable)(nil)
)

func newMemDurable() *memDurable { return &memDurable{m: make(map[string][]byte)} }

func (d *memDurable) Read(_ context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	d.reads++
	if d.failRead || d.failAll {
		d.mu.Unlock()
		return nil, false, errBoom
	}
	v, ok := d.m[key]
	hook := d.afterRead
	d.afterRead = nil
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	return v, ok, nil
}

// pauseNextRead makes the next Read stop after capturing its value. It
// returns a channel closed once the read is parked and a func resuming it.
func (d *memDurable) pauseNextRead() (parked <-chan struct{}, resume func()) {
	p, r := make(chan struct{}), make(chan struct{})
	d.mu.Lock()
	d.afterRead = func() {
		close(p)
		<-r
	}
	d.mu.Unlock()
	return p, func() { close(r) }
}

func (d *memDurable) Write(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return errBoom
	}
	if d.maxBytes > 0 {
		var used int64
		for k, v := range d.m {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > d.maxBytes {
			return ErrDurableFull
		}
	}
	d.m[key] = append([]byte(nil), value...)
	return nil
}

func (d *memDurable) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return errBoom
	}
	delete(d.m, key)
	return nil
}

func (d *memDurable) ListKeysWithPrefix(_ context.Context, prefix string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return nil, errBoom
	}
	var out []string
	for k := range d.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (d *memDurable) BytesWithPrefix(_ context.Context, prefix, exclude string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for k, v := range d.m {
		if k != exclude && strings.HasPrefix(k, prefix) {
			n += int64(len(v))
		}
	}
	return n, nil
}

func (d *memDurable) Close(context.Context) error { return nil }

func (d *memDurable) has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.m[key]
	return ok
}

func (d *memDurable) put(key string, v []byte) {
	d.mu.Lock()
	d.m[key] = v
	d.mu.Unlock()
}

func (d *memDurable) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.m)
}

// memRemote is a map-backed provider.Provider. It ignores TTL; entry
// validity is enforced by the service.
type memRemote struct {
	mu      sync.Mutex
	m       map[string][]byte
	failAll bool
	closed  bool
}

func newMemRemote() *memRemote { return &memRemote{m: make(map[string][]byte)} }

func (r *memRemote) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, false, errBoom
	}
	v, ok := r.m[key]
	return v, ok, nil
}

func (r *memRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errBoom
	}
	r.m[key] = append([]byte(nil), value...)
	return nil
}

func (r *memRemote) Del(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errBoom
	}
	delete(r.m, key)
	return nil
}

func (r *memRemote) Close(context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *memRemote) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[key]
	return ok
}

// prefixRemote adds prefix deletion to memRemote.
type prefixRemote struct{ *memRemote }

func (r prefixRemote) DelPrefix(_ context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.m {
		if strings.HasPrefix(k, prefix) {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}

type selfHeal struct {
	tier   Tier
	key    string
	reason string
}

// recHooks records every hook call.
type recHooks struct {
	mu         sync.Mutex
	heals      []selfHeal
	evicted    int
	tierErrs   []string
	fulls      int
	sweptCh    chan struct{}
	lastPurged int
}

func (h *recHooks) SelfHeal(t Tier, k, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, selfHeal{t, k, reason})
	h.mu.Unlock()
}

func (h *recHooks) Evicted(_ string, n int, _ int64) {
	h.mu.Lock()
	h.evicted += n
	h.mu.Unlock()
}

func (h *recHooks) TierError(t Tier, op, _ string, _ error) {
	h.mu.Lock()
	h.tierErrs = append(h.tierErrs, t.String()+":"+op)
	h.mu.Unlock()
}

func (h *recHooks) DurableFull(_ string, purged int) {
	h.mu.Lock()
	h.fulls++
	h.lastPurged = purged
	h.mu.Unlock()
}

func (h *recHooks) Swept(string, int, int) {
	if h.sweptCh != nil {
		select {
		case h.sweptCh <- struct{}{}:
		default:
		}
	}
}

func (h *recHooks) healReasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.heals))
	for _, s := range h.heals {
		out = append(out, s.tier.String()+":"+s.reason)
	}
	return out
}

func (h *recHooks) errs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.tierErrs...)
}

type testEnv struct {
	svc     *Service
	durable *memDurable
	remote  *memRemote
	clk     *clock.Mock
	hooks   *recHooks
}

func chatConfig() NamespaceConfig {
	return NamespaceConfig{Kind: KindChat, DefaultTTL: 600 * time.Second, MaxMemoryBytes: 1024, Version: "1"}
}

// newTestService builds a service with both lower tiers attached. mod may
// tweak the options; setting Durable or Remote to nil detaches that tier.
func newTestService(t *testing.T, cfg NamespaceConfig, mod func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		durable: newMemDurable(),
		remote:  newMemRemote(),
		clk:     clock.NewMock(),
		hooks:   &recHooks{},
	}
	opts := Options{
		Config:        cfg,
		Durable:       env.durable,
		Remote:        env.remote,
		Clock:         env.clk,
		Hooks:         env.hooks,
		SweepInterval: -1,
	}
	if mod != nil {
		mod(&opts)
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	env.svc = svc
	return env
}

func blob(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
