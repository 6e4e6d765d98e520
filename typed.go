package tiercache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tiercache/codec"
)

// Loader produces a value for a key that is not cached.
type Loader[V any] func(ctx context.Context) (V, error)

// PreloadItem pairs a key with the loader that fills it. TTL <= 0 uses the
// namespace default.
type PreloadItem[V any] struct {
	Key    string
	Loader Loader[V]
	TTL    time.Duration
}

// Typed is a codec-backed view of a namespace Service.
type Typed[V any] struct {
	svc   *Service
	codec codec.Codec[V]
	group singleflight.Group
}

// NewTyped binds c to svc. Several Typed views may share one Service as long
// as they agree on the codec for the keys they touch.
func NewTyped[V any](svc *Service, c codec.Codec[V]) *Typed[V] {
	return &Typed[V]{svc: svc, codec: c}
}

// Service returns the underlying namespace service.
func (t *Typed[V]) Service() *Service { return t.svc }

// Get returns the cached value for key. A payload the codec cannot decode is
// deleted from every tier and reported as a miss.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool) {
	b, ok := t.svc.Get(ctx, key)
	return t.decode(ctx, key, b, ok)
}

// peek is Get without request accounting.
func (t *Typed[V]) peek(ctx context.Context, key string) (V, bool) {
	b, _, ok := t.svc.lookup(ctx, key)
	return t.decode(ctx, key, b, ok)
}

func (t *Typed[V]) decode(ctx context.Context, key string, b []byte, ok bool) (V, bool) {
	var zero V
	if !ok {
		return zero, false
	}
	v, err := t.codec.Decode(b)
	if err != nil {
		// the bytes may have come from any tier; all copies are dropped
		t.svc.hooks.SelfHeal(TierAll, t.svc.storageKey(key), "value_decode")
		t.svc.log.Warn("cached value failed to decode; dropped", Fields{"err": err})
		t.svc.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

// Set encodes v and writes it through all tiers. A *SerializationError is
// returned, and nothing written, when v cannot be encoded.
func (t *Typed[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	b, err := t.codec.Encode(v)
	if err != nil {
		return &SerializationError{Namespace: string(t.svc.cfg.Kind), Key: key, Err: err}
	}
	return t.svc.Set(ctx, key, b, ttl)
}

func (t *Typed[V]) Delete(ctx context.Context, key string) { t.svc.Delete(ctx, key) }

// GetBatch looks keys up concurrently. Hits are returned by key; missing
// keeps the order of keys.
func (t *Typed[V]) GetBatch(ctx context.Context, keys []string) (map[string]V, []string) {
	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(t.svc.workers)
	for _, k := range keys {
		g.Go(func() error {
			if v, ok := t.Get(ctx, k); ok {
				mu.Lock()
				out[k] = v
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var missing []string
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	return out, missing
}

// SetBatch writes items concurrently. ok is true only if every item was
// written; items that succeeded stay cached even when others fail.
func (t *Typed[V]) SetBatch(ctx context.Context, items map[string]V, ttl time.Duration) (bool, error) {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(t.svc.workers)
	for k, v := range items {
		g.Go(func() error {
			if err := t.Set(ctx, k, v, ttl); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(errs) == 0, errors.Join(errs...)
}

// Preload fills keys that are not validly cached by calling their loaders.
// Items run independently; one failing loader does not stop the others.
// Concurrent loads of the same key share one loader call.
func (t *Typed[V]) Preload(ctx context.Context, items []PreloadItem[V]) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(t.svc.workers)
	for _, it := range items {
		g.Go(func() error {
			if _, err := t.load(ctx, it.Key, it.Loader, it.TTL, t.Get); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// GetOrLoad returns the cached value or loads, caches and returns it.
// A value that loaded but failed to encode is returned with the error.
// Each call counts as one request in Stats.
func (t *Typed[V]) GetOrLoad(ctx context.Context, key string, loader Loader[V], ttl time.Duration) (V, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}
	return t.load(ctx, key, loader, ttl, t.peek)
}

type loaded[V any] struct {
	v   V
	err error // non-fatal: set failed after a successful load
}

// load runs loader for key unless check finds it cached. Preload checks with
// Get (its only lookup); GetOrLoad has already counted one and uses peek.
func (t *Typed[V]) load(ctx context.Context, key string, loader Loader[V], ttl time.Duration,
	check func(context.Context, string) (V, bool)) (V, error) {
	res, err, _ := t.group.Do(key, func() (any, error) {
		// re-check inside the flight: a finished flight has already cached it
		if v, ok := check(ctx, key); ok {
			return loaded[V]{v: v}, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, &LoaderError{Key: key, Err: err}
		}
		return loaded[V]{v: v, err: t.Set(ctx, key, v, ttl)}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	l := res.(loaded[V])
	return l.v, l.err
}
