// Package resolver turns a (module, interface) pair into an absolute address
// by combining the offset table with the module locator.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/safe"
)

// Resolution is one successfully resolved interface.
type Resolution struct {
	Module    string
	Interface string
	Offset    offsets.Offset
	Base      uint64
	Size      uint64
	Address   uint64
	// Generation is the module load generation Address was computed against.
	Generation uint64
}

// String renders the resolution the way the dumper logs it.
func (r Resolution) String() string {
	return fmt.Sprintf("%s!%s = %s + %s (%#x)", r.Module, r.Interface, r.Module, r.Offset, r.Address)
}

// Resolver computes interface addresses. It holds no state of its own and
// never retries.
type Resolver struct {
	tables  *offsets.Store
	locator modules.Locator
	logger  zerolog.Logger
}

// New creates a resolver reading offsets from tables and module bases from
// locator.
func New(tables *offsets.Store, locator modules.Locator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		tables:  tables,
		locator: locator,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve looks up the offset of iface in module, locates the module and
// returns base+offset. Errors are *errors.ResolveError values of kind
// UnknownInterface, ModuleNotLoaded or OffsetOutOfRange.
func (r *Resolver) Resolve(ctx context.Context, module, iface string) (Resolution, error) {
	return r.ResolveIn(ctx, r.tables.Load(), module, iface)
}

// ResolveIn is Resolve against a specific table rather than the current one.
func (r *Resolver) ResolveIn(ctx context.Context, table *offsets.Table, module, iface string) (Resolution, error) {
	module = offsets.CanonicalModule(module)

	// Unknown pairs fail before the module list is queried.
	off, err := table.Resolve(module, iface)
	if err != nil {
		return Resolution{}, err
	}

	entry, err := r.locator.Locate(ctx, module)
	if err != nil {
		var re *rerrors.ResolveError
		if errors.As(err, &re) && re.Interface == "" {
			withIface := *re
			withIface.Interface = iface
			err = &withIface
		}
		return Resolution{}, err
	}

	res := Resolution{
		Module:     module,
		Interface:  iface,
		Offset:     off,
		Base:       entry.Base,
		Size:       entry.Size,
		Generation: entry.Generation,
	}

	addr, ok := safe.AddOffset(entry.Base, int64(off))
	if !ok || !safe.InRange(addr, entry.Base, entry.Size) {
		r.logger.Debug().
			Str("module", module).
			Str("interface", iface).
			Str("offset", off.String()).
			Str("base", fmt.Sprintf("%#x", entry.Base)).
			Str("size", fmt.Sprintf("%#x", entry.Size)).
			Msg("Offset falls outside module image")
		return Resolution{}, &rerrors.ResolveError{
			Kind:      rerrors.OffsetOutOfRange,
			Module:    module,
			Interface: iface,
			Offset:    int64(off),
			Base:      entry.Base,
			Size:      entry.Size,
			Address:   addr,
		}
	}
	res.Address = addr

	r.logger.Debug().
		Str("interface", iface).
		Str("address", fmt.Sprintf("%s + %s", module, off)).
		Uint64("generation", entry.Generation).
		Msg("Resolved interface")
	return res, nil
}
