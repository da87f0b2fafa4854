package modules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
)

// Entry is the tracked state of one module. Entries are created on the first
// lookup of a module and never removed; an unloaded module keeps its entry
// with Loaded false.
type Entry struct {
	Name   string
	Path   string
	Base   uint64
	Size   uint64
	Loaded bool
	// Generation increases every time the module's loaded image changes
	// (first load, unload, reload at another base, size change). Zero means
	// the module has never been observed.
	Generation uint64
}

// ReloadEvent reports that a module previously seen loaded changed.
type ReloadEvent struct {
	Module string
	Old    Entry
	New    Entry
}

// Locator resolves module names to loaded images.
type Locator interface {
	Locate(ctx context.Context, name string) (Entry, error)
	Generation(name string) uint64
}

// Options configures a Tracker.
type Options struct {
	// PreferredPaths disambiguates modules loaded more than once under the
	// same file name: canonical name -> full path to pick. Without a
	// preference the image with the lowest base wins.
	PreferredPaths map[string]string
}

type tracked struct {
	state atomic.Pointer[Entry]
}

// Tracker is the Locator over a Source. It keeps one Entry per module ever
// asked for and bumps the module's generation whenever its image changes.
type Tracker struct {
	source    Source
	logger    zerolog.Logger
	preferred map[string]string

	mu      sync.RWMutex
	modules map[string]*tracked

	// observeMu serializes state transitions so generations never go
	// backwards when Locate and Refresh race.
	observeMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []func(ReloadEvent)
}

// NewTracker creates a tracker reading module lists from source.
func NewTracker(source Source, opts Options, logger zerolog.Logger) *Tracker {
	preferred := make(map[string]string, len(opts.PreferredPaths))
	for name, path := range opts.PreferredPaths {
		preferred[offsets.CanonicalModule(name)] = path
	}
	return &Tracker{
		source:    source,
		logger:    logger.With().Str("component", "module_tracker").Logger(),
		preferred: preferred,
		modules:   make(map[string]*tracked),
	}
}

// OnReload registers fn to be called after a tracked module changes.
// Callbacks run synchronously on the goroutine that observed the change.
func (t *Tracker) OnReload(fn func(ReloadEvent)) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Locate queries the source for name and returns its current entry.
// Returns a ModuleNotLoaded error when the module is absent or the source
// cannot be queried.
func (t *Tracker) Locate(ctx context.Context, name string) (Entry, error) {
	name = offsets.CanonicalModule(name)

	regions, err := t.source.Modules(ctx)
	if err != nil {
		return Entry{}, &rerrors.ResolveError{Kind: rerrors.ModuleNotLoaded, Module: name, Err: err}
	}

	entry, _ := t.observe(name, t.pick(name, regions))
	if !entry.Loaded {
		return entry, &rerrors.ResolveError{Kind: rerrors.ModuleNotLoaded, Module: name}
	}
	return entry, nil
}

// Generation returns the current generation of name without querying the
// source. Zero means the module has never been observed.
func (t *Tracker) Generation(name string) uint64 {
	m := t.lookup(offsets.CanonicalModule(name))
	if m == nil {
		return 0
	}
	if e := m.state.Load(); e != nil {
		return e.Generation
	}
	return 0
}

// Entry returns the last observed state of name without querying the source.
func (t *Tracker) Entry(name string) (Entry, bool) {
	m := t.lookup(offsets.CanonicalModule(name))
	if m == nil {
		return Entry{}, false
	}
	e := m.state.Load()
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Tracked returns the names of every module observed so far.
func (t *Tracker) Tracked() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.modules))
	for name := range t.modules {
		names = append(names, name)
	}
	return names
}

// Refresh re-reads the module list once and updates every tracked module.
// It is the hook for module load notifications and periodic polling.
// Returns the reload events it caused.
func (t *Tracker) Refresh(ctx context.Context) ([]ReloadEvent, error) {
	regions, err := t.source.Modules(ctx)
	if err != nil {
		return nil, err
	}

	var events []ReloadEvent
	for _, name := range t.Tracked() {
		if _, ev := t.observe(name, t.pick(name, regions)); ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

// Watch calls Refresh every interval until ctx is done.
func (t *Tracker) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", interval).Msg("Watching modules for reloads")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Refresh(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("Module refresh failed")
			}
		}
	}
}

func (t *Tracker) lookup(name string) *tracked {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modules[name]
}

func (t *Tracker) getOrCreate(name string) *tracked {
	if m := t.lookup(name); m != nil {
		return m
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.modules[name]; ok {
		return m
	}
	m := &tracked{}
	t.modules[name] = m
	return m
}

// pick chooses among regions that share name.
func (t *Tracker) pick(name string, regions []Region) *Region {
	preferred := t.preferred[name]
	var best *Region
	for i := range regions {
		r := &regions[i]
		if offsets.CanonicalModule(r.Name) != name {
			continue
		}
		if preferred != "" && strings.EqualFold(r.Path, preferred) {
			return r
		}
		if best == nil || r.Base < best.Base {
			best = r
		}
	}
	return best
}

// observe records the current region (nil = not loaded) for name and
// returns the resulting entry, plus an event when a previously observed
// state changed.
func (t *Tracker) observe(name string, r *Region) (Entry, *ReloadEvent) {
	m := t.getOrCreate(name)

	t.observeMu.Lock()
	prev := m.state.Load()
	next := Entry{Name: name}
	if r != nil {
		next.Path = r.Path
		next.Base = r.Base
		next.Size = r.Size
		next.Loaded = true
	}

	if prev != nil && sameImage(*prev, next) {
		t.observeMu.Unlock()
		return *prev, nil
	}
	if prev != nil {
		next.Generation = prev.Generation + 1
	} else if next.Loaded {
		next.Generation = 1
	}
	m.state.Store(&next)
	t.observeMu.Unlock()

	if prev == nil {
		if next.Loaded {
			t.logger.Debug().
				Str("module", name).
				Str("base", hex(next.Base)).
				Str("size", hex(next.Size)).
				Msg("Module located")
		}
		return next, nil
	}

	event := ReloadEvent{Module: name, Old: *prev, New: next}
	switch {
	case !next.Loaded:
		t.logger.Info().Str("module", name).Uint64("generation", next.Generation).Msg("Module unloaded")
	case !prev.Loaded:
		t.logger.Info().Str("module", name).Str("base", hex(next.Base)).Uint64("generation", next.Generation).Msg("Module loaded")
	default:
		t.logger.Info().
			Str("module", name).
			Str("old_base", hex(prev.Base)).
			Str("new_base", hex(next.Base)).
			Uint64("generation", next.Generation).
			Msg("Module reloaded")
	}
	t.notify(event)
	return next, &event
}

func (t *Tracker) notify(ev ReloadEvent) {
	t.listenersMu.RLock()
	listeners := t.listeners
	t.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

func sameImage(a, b Entry) bool {
	return a.Loaded == b.Loaded && a.Base == b.Base && a.Size == b.Size && a.Path == b.Path
}
