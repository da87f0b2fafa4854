// Package guard decides whether a resolved interface address still looks
// like it belongs to the binary the offset table was generated from.
//
// The guard never proves an address correct: after an update that keeps
// function sizes the offset can land on valid looking but wrong data. It
// only filters out clearly broken resolutions such as unmapped memory or
// addresses spilling out of the owning module.
package guard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/safe"
)

// Verdict is the outcome of a plausibility check.
type Verdict uint8

const (
	Plausible Verdict = iota + 1
	SuspectStale
)

func (v Verdict) String() string {
	switch v {
	case Plausible:
		return "Plausible"
	case SuspectStale:
		return "SuspectStale"
	default:
		return fmt.Sprintf("Verdict(%d)", uint8(v))
	}
}

// Candidate is a resolved address awaiting acceptance.
type Candidate struct {
	Module    string
	Interface string
	Offset    int64
	Base      uint64
	Size      uint64
	Address   uint64
	// Expect overrides the configured pattern for this check.
	Expect Pattern
}

// Expectation binds a byte pattern to one interface.
type Expectation struct {
	Module    string
	Interface string
	Pattern   Pattern
}

// Options configures a Guard.
type Options struct {
	// Prober enables the structural checks. Nil limits the guard to the
	// bounds check.
	Prober Prober
	// RequireExecutable rejects addresses outside executable regions.
	RequireExecutable bool
	// Expectations are byte patterns that must be found at specific
	// interfaces.
	Expectations []Expectation
}

// Guard runs plausibility checks. It is safe for concurrent use.
type Guard struct {
	prober            Prober
	requireExecutable bool
	patterns          map[string]Pattern
	logger            zerolog.Logger
}

// New creates a guard.
func New(opts Options, logger zerolog.Logger) *Guard {
	patterns := make(map[string]Pattern, len(opts.Expectations))
	for _, e := range opts.Expectations {
		patterns[patternKey(e.Module, e.Interface)] = e.Pattern
	}
	return &Guard{
		prober:            opts.Prober,
		requireExecutable: opts.RequireExecutable,
		patterns:          patterns,
		logger:            logger.With().Str("component", "guard").Logger(),
	}
}

// Check classifies c. The error is a SuspectStale *errors.ResolveError
// whenever the verdict is SuspectStale, and nil for Plausible.
func (g *Guard) Check(ctx context.Context, c Candidate) (Verdict, error) {
	reason, cause := g.inspect(ctx, c)
	if reason == "" {
		return Plausible, nil
	}

	g.logger.Warn().
		Err(cause).
		Str("module", c.Module).
		Str("interface", c.Interface).
		Str("address", fmt.Sprintf("%#x", c.Address)).
		Str("reason", reason).
		Msg("Interface address looks stale")

	return SuspectStale, &rerrors.ResolveError{
		Kind:      rerrors.SuspectStale,
		Module:    c.Module,
		Interface: c.Interface,
		Offset:    c.Offset,
		Base:      c.Base,
		Size:      c.Size,
		Address:   c.Address,
		Reason:    reason,
		Err:       cause,
	}
}

// inspect returns an empty reason when c passes every check.
func (g *Guard) inspect(ctx context.Context, c Candidate) (string, error) {
	if !safe.InRange(c.Address, c.Base, c.Size) {
		return "address outside module image", nil
	}

	if g.prober == nil {
		return "", nil
	}

	prot, err := g.prober.Protection(ctx, c.Address)
	if err != nil {
		return "memory probe failed", err
	}
	switch {
	case !prot.Mapped:
		return "address not mapped", nil
	case !prot.Read && !prot.Exec:
		return "region not accessible", nil
	case g.requireExecutable && !prot.Exec:
		return "region not executable", nil
	}

	pattern := c.Expect
	if pattern.IsZero() {
		pattern = g.patterns[patternKey(c.Module, c.Interface)]
	}
	if pattern.IsZero() {
		return "", nil
	}

	end, ok := safe.AddOffset(c.Address, int64(pattern.Len()))
	if !ok || !safe.InRange(end-1, c.Base, c.Size) {
		return "expected bytes extend past module image", nil
	}
	buf := make([]byte, pattern.Len())
	if _, err := g.prober.ReadAt(ctx, c.Address, buf); err != nil {
		return "memory read failed", err
	}
	if !pattern.Match(buf) {
		return fmt.Sprintf("bytes % X do not match %s", buf, pattern), nil
	}
	return "", nil
}

func patternKey(module, iface string) string {
	return offsets.CanonicalModule(module) + "!" + iface
}
