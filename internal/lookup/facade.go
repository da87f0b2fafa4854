// Package lookup is the entry point for callers that need interface
// addresses. A Facade memoizes resolutions per module load generation and
// re-resolves lazily after a module reloads.
//
// Reloads become visible when the tracker observes them: through
// Tracker.Refresh or Tracker.Watch, a miss that calls Locate, or on every
// hit with Options.RevalidateOnHit. Without one of these, a module unloaded
// after a successful lookup keeps being served from the cache.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/guard"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/resolver"
	"github.com/swatzat-oss/cs2-dumper/internal/retry"
)

// Tracker is the module locator the façade follows for reloads.
type Tracker interface {
	modules.Locator
	OnReload(fn func(modules.ReloadEvent))
}

// Options configures a Facade.
type Options struct {
	Tables *offsets.Store
	// Tracker supplies module generations. Cache hits compare against the
	// tracker's last observation, so run Refresh or Watch alongside the
	// façade unless RevalidateOnHit is set.
	Tracker Tracker
	// Guard validates fresh resolutions. Nil uses a bounds-only guard.
	Guard *guard.Guard
	// AcceptSuspect returns SuspectStale addresses together with their
	// warning error instead of failing the lookup.
	AcceptSuspect bool
	// RevalidateOnHit locates the module again before serving a cached
	// address. Every hit then costs one module list query, and an unload
	// or reload is never missed.
	RevalidateOnHit bool
	// Registerer receives the façade metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// Facade serves interface addresses. It is safe for concurrent use.
type Facade struct {
	tables        *offsets.Store
	tracker       Tracker
	resolver      *resolver.Resolver
	guard         *guard.Guard
	acceptSuspect bool
	revalidate    bool

	slots sync.Map // slotKey -> *slot
	group singleflight.Group

	metrics *Metrics
	stats   counters
	logger  zerolog.Logger
}

// New creates a façade and subscribes it to the tracker's reload events.
func New(opts Options, logger zerolog.Logger) (*Facade, error) {
	if opts.Tables == nil || opts.Tables.Load() == nil {
		return nil, errors.New("lookup: offset table is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("lookup: module tracker is required")
	}

	g := opts.Guard
	if g == nil {
		g = guard.New(guard.Options{}, logger)
	}

	f := &Facade{
		tables:        opts.Tables,
		tracker:       opts.Tracker,
		resolver:      resolver.New(opts.Tables, opts.Tracker, logger),
		guard:         g,
		acceptSuspect: opts.AcceptSuspect,
		revalidate:    opts.RevalidateOnHit,
		metrics:       NewMetrics(opts.Registerer),
		logger:        logger.With().Str("component", "lookup").Logger(),
	}
	opts.Tracker.OnReload(f.onReload)

	table := opts.Tables.Load()
	f.logger.Info().
		Int("interfaces", table.Len()).
		Int("modules", len(table.Modules())).
		Str("fingerprint", fmt.Sprintf("%016x", table.Fingerprint())).
		Str("generator", table.Meta().Generator).
		Time("generated_at", table.Meta().GeneratedAt).
		Msg("Offset table loaded")

	return f, nil
}

// Resolve returns the address of iface in module. Repeated calls within one
// module load generation return the cached result without side effects.
//
// With AcceptSuspect set, a SuspectStale verdict yields the resolution and a
// non-nil warning error; check errors.IsWarning before discarding it.
func (f *Facade) Resolve(ctx context.Context, module, iface string) (resolver.Resolution, error) {
	e, err := f.get(ctx, module, iface)
	if err != nil {
		return resolver.Resolution{}, err
	}
	return e.res, e.warn
}

// Ref is a typed handle on an interface address. It is a copy: after the
// owning module reloads, look it up again. Pointer is only safe to
// dereference while the tracker is being refreshed or the façade
// revalidates hits.
type Ref[T any] struct {
	resolver.Resolution
}

// Pointer views the address as a *T. Only meaningful when the modules live
// in the calling process.
func (r Ref[T]) Pointer() *T {
	if r.Address == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(r.Address)))
}

// Get is Resolve returning a typed handle.
func Get[T any](ctx context.Context, f *Facade, module, iface string) (Ref[T], error) {
	res, err := f.Resolve(ctx, module, iface)
	return Ref[T]{Resolution: res}, err
}

// WaitFor resolves iface, retrying with backoff while its module is not
// loaded. Every other error is returned immediately.
func (f *Facade) WaitFor(ctx context.Context, module, iface string, cfg retry.Config) (resolver.Resolution, error) {
	var found *entry
	err := retry.Do(ctx, cfg, func() error {
		e, err := f.get(ctx, module, iface)
		if err != nil {
			return err
		}
		found = e
		return nil
	}, rerrors.IsTransient)
	if err != nil {
		return resolver.Resolution{}, err
	}
	return found.res, found.warn
}

// State reports where (module, iface) is in its cache lifecycle.
func (f *Facade) State(module, iface string) State {
	module = offsets.CanonicalModule(module)
	v, ok := f.slots.Load(slotKey{module: module, iface: iface})
	if !ok {
		return Unresolved
	}
	e := v.(*slot).cur.Load()
	switch {
	case e == nil:
		return Unresolved
	case e.state == Resolved && e.generation != f.tracker.Generation(module):
		return Stale
	default:
		return e.state
	}
}

// SwapTable installs a new offset table. Cached resolutions computed against
// the old table are ignored from now on.
func (f *Facade) SwapTable(t *offsets.Table) *offsets.Table {
	prev := f.tables.Swap(t)
	f.logger.Info().
		Str("old_fingerprint", fmt.Sprintf("%016x", prev.Fingerprint())).
		Str("new_fingerprint", fmt.Sprintf("%016x", t.Fingerprint())).
		Int("interfaces", t.Len()).
		Msg("Offset table replaced")
	return prev
}

// Table returns the offset table in use.
func (f *Facade) Table() *offsets.Table {
	return f.tables.Load()
}

// Stats returns a snapshot of the façade counters.
func (f *Facade) Stats() Stats {
	return f.stats.snapshot()
}

// Result is one row of ResolveAll.
type Result struct {
	Record     offsets.Record
	Resolution resolver.Resolution
	Err        error
}

// ResolveAll resolves every interface of the current table, in table order.
func (f *Facade) ResolveAll(ctx context.Context) []Result {
	records := f.tables.Load().Records()
	results := make([]Result, 0, len(records))
	for _, r := range records {
		res, err := f.Resolve(ctx, r.Module, r.Interface)
		results = append(results, Result{Record: r, Resolution: res, Err: err})
	}
	return results
}

func (f *Facade) get(ctx context.Context, module, iface string) (*entry, error) {
	module = offsets.CanonicalModule(module)
	table := f.tables.Load()
	key := slotKey{module: module, iface: iface}
	s := f.existing(key)

	if f.revalidate && s != nil {
		// Locate records an unload or reload and invalidates the slot
		// before the hit check. A failure surfaces from the resolver below.
		_, _ = f.tracker.Locate(ctx, module)
	}

	if e := f.cached(s, table, module); e != nil {
		f.stats.hits.Add(1)
		f.metrics.CacheHits.Inc()
		return e, nil
	}

	f.stats.misses.Add(1)
	f.metrics.CacheMisses.Inc()

	// Callers only share flights started at the generation they observed,
	// so nobody is handed an address older than one they already saw.
	flight := fmt.Sprintf("%s!%s@%p#%d", module, iface, table, f.tracker.Generation(module))
	v, err, _ := f.group.Do(flight, func() (any, error) {
		// A flight that finished between the cache check and Do already
		// published the answer.
		if e := f.cached(f.existing(key), table, module); e != nil {
			return e, nil
		}
		return f.resolve(ctx, table, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (f *Facade) cached(s *slot, table *offsets.Table, module string) *entry {
	if s == nil {
		return nil
	}
	e := s.cur.Load()
	if e == nil || e.state != Resolved || e.table != table {
		return nil
	}
	if e.generation != f.tracker.Generation(module) {
		return nil
	}
	return e
}

// resolve runs the resolver and guard. A slot is only allocated for
// successful resolutions so failed names leave no trace in the cache.
func (f *Facade) resolve(ctx context.Context, table *offsets.Table, key slotKey) (*entry, error) {
	f.stats.resolutions.Add(1)

	res, err := f.resolver.ResolveIn(ctx, table, key.module, key.iface)
	if err == nil {
		_, err = f.guard.Check(ctx, guard.Candidate{
			Module:    res.Module,
			Interface: res.Interface,
			Offset:    int64(res.Offset),
			Base:      res.Base,
			Size:      res.Size,
			Address:   res.Address,
		})
	}
	f.metrics.Resolutions.WithLabelValues(outcome(err)).Inc()

	if err != nil && !(f.acceptSuspect && rerrors.IsWarning(err)) {
		f.stats.failures.Add(1)
		f.logger.Debug().Err(err).Str("module", key.module).Str("interface", key.iface).Msg("Interface unavailable")
		return nil, err
	}

	e := &entry{
		state:      Resolved,
		generation: res.Generation,
		table:      table,
		res:        res,
		warn:       err,
	}
	if !f.slot(key).publish(e) {
		f.logger.Debug().
			Str("module", key.module).
			Str("interface", key.iface).
			Uint64("generation", res.Generation).
			Msg("Discarded resolution from an older module generation")
	}
	return e, nil
}

// existing returns the slot for key, or nil when none was allocated.
func (f *Facade) existing(key slotKey) *slot {
	if v, ok := f.slots.Load(key); ok {
		return v.(*slot)
	}
	return nil
}

func (f *Facade) slot(key slotKey) *slot {
	if v, ok := f.slots.Load(key); ok {
		return v.(*slot)
	}
	v, _ := f.slots.LoadOrStore(key, &slot{})
	return v.(*slot)
}

func (f *Facade) onReload(ev modules.ReloadEvent) {
	invalidated := 0
	f.slots.Range(func(k, v any) bool {
		if k.(slotKey).module != ev.Module {
			return true
		}
		if v.(*slot).invalidate(ev.New.Generation) {
			invalidated++
		}
		return true
	})
	if invalidated == 0 {
		return
	}

	f.stats.invalidations.Add(uint64(invalidated))
	f.metrics.Invalidations.WithLabelValues(ev.Module).Add(float64(invalidated))
	f.logger.Info().
		Str("module", ev.Module).
		Uint64("generation", ev.New.Generation).
		Int("interfaces", invalidated).
		Msg("Invalidated cached interfaces")
}
