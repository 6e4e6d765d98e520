// Package otelstats exports tiercache statistics as OpenTelemetry metrics.
// Stats are read at collection time through observable instruments, so the
// cache hot path never touches the meter. Hooks adds event counters for
// self-heals, tier errors and durable-full events.
package otelstats

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/tiercache"
)

const meterName = "github.com/unkn0wn-root/tiercache"

// Source is satisfied by *tiercache.Registry.
type Source interface {
	AllStats() map[tiercache.Kind]tiercache.Stats
}

// Register installs observable instruments reading src. A nil meter uses the
// global provider. Unregister the returned registration on shutdown.
// Request counters restart from zero when a namespace is cleared.
func Register(meter metric.Meter, src Source) (metric.Registration, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	requests, err := meter.Int64ObservableCounter("tiercache.requests",
		metric.WithDescription("Lookups by namespace and result"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64ObservableCounter("tiercache.evictions",
		metric.WithDescription("Entries evicted from the memory tier"))
	if err != nil {
		return nil, err
	}
	memBytes, err := meter.Int64ObservableGauge("tiercache.memory.bytes",
		metric.WithDescription("Bytes resident in the memory tier"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	memEntries, err := meter.Int64ObservableGauge("tiercache.memory.entries",
		metric.WithDescription("Entries resident in the memory tier"))
	if err != nil {
		return nil, err
	}
	hitRate, err := meter.Float64ObservableGauge("tiercache.hit_rate",
		metric.WithDescription("Hits over requests since the last clear"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for kind, st := range src.AllStats() {
			ns := attribute.String("namespace", string(kind))
			for _, r := range []struct {
				result string
				n      uint64
			}{
				{"memory_hit", st.MemoryHits},
				{"durable_hit", st.DurableHits},
				{"remote_hit", st.RemoteHits},
				{"miss", st.Misses},
			} {
				o.ObserveInt64(requests, int64(r.n), metric.WithAttributes(ns, attribute.String("result", r.result)))
			}
			o.ObserveInt64(evictions, int64(st.Evictions), metric.WithAttributes(ns))
			o.ObserveInt64(memBytes, st.MemoryBytes, metric.WithAttributes(ns))
			o.ObserveInt64(memEntries, int64(st.MemoryEntries), metric.WithAttributes(ns))
			o.ObserveFloat64(hitRate, st.HitRate, metric.WithAttributes(ns))
		}
		return nil
	}, requests, evictions, memBytes, memEntries, hitRate)
}

// Hooks counts hook events. Wrap it with asynchook if the exporter is slow;
// counter Add is cheap, so it is usually fine inline.
type Hooks struct {
	selfHeals   metric.Int64Counter
	tierErrors  metric.Int64Counter
	durableFull metric.Int64Counter
	swept       metric.Int64Counter
}

var _ tiercache.Hooks = (*Hooks)(nil)

func NewHooks(meter metric.Meter) (*Hooks, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	var (
		h    Hooks
		errs []error
		err  error
	)
	h.selfHeals, err = meter.Int64Counter("tiercache.self_heals",
		metric.WithDescription("Invalid entries purged on read"))
	errs = append(errs, err)
	h.tierErrors, err = meter.Int64Counter("tiercache.tier_errors",
		metric.WithDescription("Absorbed durable/remote failures"))
	errs = append(errs, err)
	h.durableFull, err = meter.Int64Counter("tiercache.durable_full",
		metric.WithDescription("Durable writes abandoned for capacity"))
	errs = append(errs, err)
	h.swept, err = meter.Int64Counter("tiercache.swept",
		metric.WithDescription("Entries purged by periodic sweeps"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *Hooks) SelfHeal(t tiercache.Tier, _ string, reason string) {
	h.selfHeals.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tier", t.String()),
		attribute.String("reason", reason)))
}

// Evicted is covered by the observable tiercache.evictions counter.
func (h *Hooks) Evicted(string, int, int64) {}

func (h *Hooks) TierError(t tiercache.Tier, op, _ string, _ error) {
	h.tierErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tier", t.String()),
		attribute.String("op", op)))
}

func (h *Hooks) DurableFull(ns string, _ int) {
	h.durableFull.Add(context.Background(), 1, metric.WithAttributes(attribute.String("namespace", ns)))
}

func (h *Hooks) Swept(ns string, mem, dur int) {
	ctx := context.Background()
	h.swept.Add(ctx, int64(mem), metric.WithAttributes(attribute.String("namespace", ns), attribute.String("tier", "memory")))
	h.swept.Add(ctx, int64(dur), metric.WithAttributes(attribute.String("namespace", ns), attribute.String("tier", "durable")))
}
