package tiercache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/unkn0wn-root/tiercache/provider"
	"github.com/unkn0wn-root/tiercache/versionstore"
)

const defaultSweepSchedule = "@every 5m"

// RegistryOptions configure a Registry. The durable, remote and version
// stores are shared by every namespace and owned by the Registry once
// NewRegistry succeeds.
type RegistryOptions struct {
	Namespaces []NamespaceConfig // nil => DefaultNamespaces()

	Durable  DurableStore
	Remote   provider.Provider
	Versions versionstore.Store

	Logger Logger
	Hooks  Hooks
	Clock  clock.Clock

	// SweepSchedule is a cron spec for the registry-wide sweep.
	// "" => every 5 minutes.
	SweepSchedule string
	BatchWorkers  int
}

// Registry owns one Service per namespace kind. It is safe for concurrent
// use; the set of namespaces is fixed at construction.
type Registry struct {
	services map[Kind]*Service
	kinds    []Kind

	durable  DurableStore
	remote   provider.Provider
	versions versionstore.Store
	log      Logger

	schedule string
	mu       sync.Mutex
	cron     *cron.Cron
	closed   bool
}

func NewRegistry(opts RegistryOptions) (*Registry, error) {
	nss := opts.Namespaces
	if nss == nil {
		nss = DefaultNamespaces()
	}
	schedule := coalesce(opts.SweepSchedule, defaultSweepSchedule)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("tiercache: sweep schedule %q: %w", schedule, err)
	}

	versions := opts.Versions
	if versions == nil {
		versions = versionstore.NewLocal()
	}
	r := &Registry{
		services: make(map[Kind]*Service, len(nss)),
		durable:  opts.Durable,
		remote:   opts.Remote,
		versions: versions,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		schedule: schedule,
	}

	for _, cfg := range nss {
		if _, dup := r.services[cfg.Kind]; dup {
			r.closeServices()
			return nil, fmt.Errorf("tiercache: namespace %q registered twice", cfg.Kind)
		}
		svc, err := New(Options{
			Config:        cfg,
			Durable:       opts.Durable,
			Remote:        opts.Remote,
			Versions:      versions,
			Logger:        opts.Logger,
			Hooks:         opts.Hooks,
			Clock:         opts.Clock,
			SweepInterval: -1,
			BatchWorkers:  opts.BatchWorkers,
		})
		if err != nil {
			r.closeServices()
			return nil, err
		}
		r.services[cfg.Kind] = svc
		r.kinds = append(r.kinds, cfg.Kind)
	}
	sort.Slice(r.kinds, func(i, j int) bool { return r.kinds[i] < r.kinds[j] })
	return r, nil
}

// Namespace returns the service for kind. Asking for a kind that was never
// registered is a programming error and panics with *UnknownNamespaceError.
func (r *Registry) Namespace(kind Kind) *Service {
	svc, ok := r.services[kind]
	if !ok {
		panic(&UnknownNamespaceError{Kind: kind})
	}
	return svc
}

// Lookup is the non-panicking form of Namespace.
func (r *Registry) Lookup(kind Kind) (*Service, bool) {
	svc, ok := r.services[kind]
	return svc, ok
}

// Kinds lists registered namespaces in lexical order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

func (r *Registry) AllStats() map[Kind]Stats {
	out := make(map[Kind]Stats, len(r.services))
	for k, svc := range r.services {
		out[k] = svc.Stats()
	}
	return out
}

// ClearAll clears every namespace.
func (r *Registry) ClearAll(ctx context.Context) {
	for _, k := range r.kinds {
		r.services[k].Clear(ctx)
	}
}

// ClearNamespace clears one namespace; an unknown kind is an error here
// since the kind usually comes from outside the program.
func (r *Registry) ClearNamespace(ctx context.Context, kind Kind) error {
	svc, ok := r.services[kind]
	if !ok {
		return &UnknownNamespaceError{Kind: kind}
	}
	svc.Clear(ctx)
	return nil
}

// Sweep sweeps every namespace once.
func (r *Registry) Sweep(ctx context.Context) map[Kind]SweepResult {
	out := make(map[Kind]SweepResult, len(r.kinds))
	for _, k := range r.kinds {
		out[k] = r.services[k].Sweep(ctx)
	}
	return out
}

// Start schedules the periodic sweep. Calling Start twice is a no-op.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("tiercache: registry closed")
	}
	if r.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("tiercache: schedule sweep: %w", err)
	}
	c.Start()
	r.cron = c
	r.log.Info("sweep scheduled", Fields{"schedule": r.schedule})
	return nil
}

// Close stops the sweep schedule, closes every service and then the shared
// stores. Errors from the stores are joined.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	c := r.cron
	r.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	r.closeServices()

	var errs []error
	if err := r.versions.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close version store: %w", err))
	}
	if r.durable != nil {
		if err := r.durable.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close durable tier: %w", err))
		}
	}
	if r.remote != nil {
		if err := r.remote.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close remote tier: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeServices() {
	for _, svc := range r.services {
		_ = svc.Close(context.Background())
	}
}
