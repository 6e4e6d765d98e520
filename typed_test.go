package tiercache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/internal/keys"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// pickyCodec refuses to encode users named "bad".
type pickyCodec struct{ codec.JSON[user] }

func (c pickyCodec) Encode(u user) ([]byte, error) {
	if u.Name == "bad" {
		return nil, errors.New("unencodable")
	}
	return c.JSON.Encode(u)
}

func newTypedUsers(t *testing.T, mod func(*Options)) (*Typed[user], *testEnv) {
	t.Helper()
	env := newTestService(t, NamespaceConfig{Kind: KindUser, Version: "1"}, mod)
	return NewTyped[user](env.svc, pickyCodec{}), env
}

func TestTypedRoundTrip(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()

	if err := users.Set(ctx, "u1", user{ID: "1", Name: "Ada"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := users.Get(ctx, "u1")
	if !ok || got.Name != "Ada" {
		t.Fatalf("Get = %+v,%v", got, ok)
	}
	users.Delete(ctx, "u1")
	if _, ok := users.Get(ctx, "u1"); ok {
		t.Fatalf("expected miss after Delete")
	}
}

func TestTypedSerializationError(t *testing.T) {
	users, env := newTypedUsers(t, nil)
	ctx := context.Background()

	err := users.Set(ctx, "u1", user{Name: "bad"}, 0)
	var se *SerializationError
	if !errors.As(err, &se) || se.Key != "u1" || se.Namespace != "user" {
		t.Fatalf("want *SerializationError for u1, got %v", err)
	}
	if _, ok := env.svc.Get(ctx, "u1"); ok {
		t.Fatalf("nothing may be written when encoding fails")
	}
	if env.durable.len() != 0 {
		t.Fatalf("durable written despite encode failure")
	}
}

func TestTypedUndecodableValueIsDropped(t *testing.T) {
	users, env := newTypedUsers(t, nil)
	ctx := context.Background()
	_ = env.svc.Set(ctx, "u1", []byte("{not json"), 0)

	if _, ok := users.Get(ctx, "u1"); ok {
		t.Fatalf("undecodable value must read as a miss")
	}
	if env.durable.has(keys.Storage("user", "u1")) {
		t.Fatalf("undecodable value should be deleted from every tier")
	}
	if got := env.hooks.healReasons(); !slices.Contains(got, "all:value_decode") {
		t.Fatalf("self-heal = %v", got)
	}
}

func TestGetBatch(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()
	_ = users.Set(ctx, "a", user{ID: "a"}, 0)
	_ = users.Set(ctx, "c", user{ID: "c"}, 0)

	hits, missing := users.GetBatch(ctx, []string{"a", "b", "c", "d"})
	if len(hits) != 2 || hits["a"].ID != "a" || hits["c"].ID != "c" {
		t.Fatalf("hits = %+v", hits)
	}
	if !slices.Equal(missing, []string{"b", "d"}) {
		t.Fatalf("missing = %v; want [b d]", missing)
	}

	hits, missing = users.GetBatch(ctx, nil)
	if len(hits) != 0 || missing != nil {
		t.Fatalf("empty batch should be empty")
	}
}

func TestSetBatchPartialFailure(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()

	ok, err := users.SetBatch(ctx, map[string]user{
		"good1": {Name: "one"},
		"bad":   {Name: "bad"},
		"good2": {Name: "two"},
	}, 0)
	if ok || err == nil {
		t.Fatalf("batch with one failure must report false, got ok=%v err=%v", ok, err)
	}
	var se *SerializationError
	if !errors.As(err, &se) || se.Key != "bad" {
		t.Fatalf("want SerializationError for bad, got %v", err)
	}
	for _, k := range []string{"good1", "good2"} {
		if _, hit := users.Get(ctx, k); !hit {
			t.Fatalf("%s should stay cached after a partial failure", k)
		}
	}

	ok, err = users.SetBatch(ctx, map[string]user{"x": {Name: "x"}}, 0)
	if !ok || err != nil {
		t.Fatalf("clean batch = %v,%v", ok, err)
	}
}

func TestPreloadCallsEachLoaderOnce(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (user, error) {
		calls.Add(1)
		return user{ID: "dup"}, nil
	}
	items := make([]PreloadItem[user], 20)
	for i := range items {
		items[i] = PreloadItem[user]{Key: "dup", Loader: loader}
	}

	if err := users.Preload(ctx, items); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader called %d times; want 1", n)
	}
	if got, ok := users.Get(ctx, "dup"); !ok || got.ID != "dup" {
		t.Fatalf("preloaded value missing")
	}
}

func TestPreloadSkipsCachedAndCollectsFailures(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()
	_ = users.Set(ctx, "cached", user{ID: "cached"}, 0)

	boom := errors.New("backend down")
	var called sync.Map
	mk := func(key string, err error) Loader[user] {
		return func(context.Context) (user, error) {
			called.Store(key, true)
			return user{ID: key}, err
		}
	}

	err := users.Preload(ctx, []PreloadItem[user]{
		{Key: "cached", Loader: mk("cached", nil)},
		{Key: "fails", Loader: mk("fails", boom)},
		{Key: "fresh", Loader: mk("fresh", nil)},
	})

	var le *LoaderError
	if !errors.As(err, &le) || le.Key != "fails" || !errors.Is(err, boom) {
		t.Fatalf("want LoaderError wrapping boom, got %v", err)
	}
	if _, ok := called.Load("cached"); ok {
		t.Fatalf("loader for an already cached key must not run")
	}
	if _, ok := users.Get(ctx, "fresh"); !ok {
		t.Fatalf("one failing loader must not stop the others")
	}
	if _, ok := users.Get(ctx, "fails"); ok {
		t.Fatalf("failed load must not be cached")
	}
}

func TestGetOrLoad(t *testing.T) {
	users, _ := newTypedUsers(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (user, error) {
		calls.Add(1)
		return user{ID: "7", Name: "Grace"}, nil
	}
	for i := 0; i < 3; i++ {
		u, err := users.GetOrLoad(ctx, "u7", loader, 0)
		if err != nil || u.Name != "Grace" {
			t.Fatalf("GetOrLoad #%d = %+v,%v", i, u, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("loader called %d times; want 1", calls.Load())
	}

	u, err := users.GetOrLoad(ctx, "b", func(context.Context) (user, error) {
		return user{Name: "bad"}, nil
	}, 0)
	var se *SerializationError
	if !errors.As(err, &se) || u.Name != "bad" {
		t.Fatalf("loaded-but-unencodable value should come back with the error, got %+v,%v", u, err)
	}
}

func TestGetOrLoadCountsOneRequestPerCall(t *testing.T) {
	users, env := newTypedUsers(t, nil)
	ctx := context.Background()
	loader := func(context.Context) (user, error) { return user{ID: "1"}, nil }

	for i := 0; i < 3; i++ {
		if _, err := users.GetOrLoad(ctx, "u1", loader, 0); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}
	st := env.svc.Stats()
	if st.TotalRequests != 3 || st.Misses != 1 || st.MemoryHits != 2 {
		t.Fatalf("stats = %+v; want 3 requests, 1 miss, 2 memory hits", st)
	}
}

func TestUndecodableDurableValueIsReportedForAllTiers(t *testing.T) {
	users, env := newTypedUsers(t, nil)
	ctx := context.Background()
	sk := keys.Storage("user", "u1")
	_ = env.svc.Set(ctx, "u1", []byte("{not json"), 0)
	env.svc.mem.remove(sk)

	if _, ok := users.Get(ctx, "u1"); ok {
		t.Fatalf("undecodable durable value must read as a miss")
	}
	if env.durable.has(sk) {
		t.Fatalf("undecodable durable value should be deleted")
	}
	if got := env.hooks.healReasons(); !slices.Equal(got, []string{"all:value_decode"}) {
		t.Fatalf("self-heal = %v; want [all:value_decode]", got)
	}
}
