package tiercache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/unkn0wn-root/tiercache/internal/keys"
)

// seedDurableOnly leaves key=val in the durable tier but not in memory.
func seedDurableOnly(t *testing.T, env *testEnv, key, val string) {
	t.Helper()
	if err := env.svc.Set(context.Background(), key, []byte(val), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	env.svc.mem.remove(keys.Storage("chat", key))
}

// getDuring runs Get(key) and parks it inside the durable read while
// interfere runs, then lets it finish and returns what it saw.
func getDuring(t *testing.T, env *testEnv, key string, interfere func()) (string, bool) {
	t.Helper()
	parked, resume := env.durable.pauseNextRead()

	type result struct {
		v  []byte
		ok bool
	}
	done := make(chan result, 1)
	go func() {
		v, ok := env.svc.Get(context.Background(), key)
		done <- result{v, ok}
	}()

	<-parked
	interfere()
	resume()
	r := <-done
	return string(r.v), r.ok
}

func TestBackfillDoesNotOverwriteConcurrentSet(t *testing.T) {
	env := newTestService(t, chatConfig(), nil)
	ctx := context.Background()
	seedDurableOnly(t, env, "k", "v1")

	getDuring(t, env, "k", func() {
		if err := env.svc.Set(ctx, "k", []byte("v2"), 0); err != nil {
			t.Errorf("Set: %v", err)
		}
	})

	if v, ok := env.svc.Get(ctx, "k"); !ok || string(v) != "v2" {
		t.Fatalf("Get after racing Set = %q,%v; want v2", v, ok)
	}
}

func TestBackfillDoesNotResurrectDeletedKey(t *testing.T) {
	env := newTestService(t, chatConfig(), nil)
	ctx := context.Background()
	seedDurableOnly(t, env, "k", "v1")

	getDuring(t, env, "k", func() { env.svc.Delete(ctx, "k") })

	if _, n := env.svc.mem.usage(); n != 0 {
		t.Fatalf("memory holds %d entries after Delete; backfill must be dropped", n)
	}
	if v, ok := env.svc.Get(ctx, "k"); ok {
		t.Fatalf("deleted key came back as %q", v)
	}
}

func TestBackfillDoesNotResurrectClearedNamespace(t *testing.T) {
	env := newTestService(t, chatConfig(), nil)
	ctx := context.Background()
	seedDurableOnly(t, env, "k", "v1")

	getDuring(t, env, "k", func() { env.svc.Clear(ctx) })

	if _, n := env.svc.mem.usage(); n != 0 {
		t.Fatalf("memory holds %d entries after Clear; backfill must be dropped", n)
	}
	if v, ok := env.svc.Get(ctx, "k"); ok {
		t.Fatalf("cleared key came back as %q", v)
	}
}

func TestBackfillProceedsWithoutInterference(t *testing.T) {
	env := newTestService(t, chatConfig(), nil)
	seedDurableOnly(t, env, "k", "v1")

	v, ok := getDuring(t, env, "k", func() {})
	if !ok || v != "v1" {
		t.Fatalf("Get = %q,%v; want v1", v, ok)
	}
	if _, n := env.svc.mem.usage(); n != 1 {
		t.Fatalf("undisturbed durable hit should be backfilled")
	}
}

func TestMixedOperationsKeepMemoryCounter(t *testing.T) {
	cfg := chatConfig()
	cfg.MaxMemoryBytes = 2048
	env := newTestService(t, cfg, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", (w*7+i)%32)
				switch i % 5 {
				case 0, 1:
					_ = env.svc.Set(ctx, k, blob(40+i%90, byte('a'+w)), 0)
				case 2, 3:
					env.svc.Get(ctx, k)
				case 4:
					env.svc.Delete(ctx, k)
				}
				if i%97 == 0 {
					env.svc.Sweep(ctx)
				}
			}
		}()
	}
	wg.Wait()

	used, _ := env.svc.mem.usage()
	if sum := env.svc.mem.sumSizes(); used != sum {
		t.Fatalf("running counter %d != resident sum %d", used, sum)
	}
	if used > cfg.MaxMemoryBytes {
		t.Fatalf("memory %d over budget %d", used, cfg.MaxMemoryBytes)
	}
}
