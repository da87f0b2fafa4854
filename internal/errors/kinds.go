package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies why an interface could not be served.
// A Kind is itself an error so it can be used as an errors.Is target.
type Kind uint8

const (
	// UnknownInterface means the (module, interface) pair is absent from the
	// offset table. Permanent for the table version in use.
	UnknownInterface Kind = iota + 1
	// ModuleNotLoaded means the owning module is not mapped in the target
	// process. Transient: the caller may retry once the module loads.
	ModuleNotLoaded
	// OffsetOutOfRange means base+offset falls outside the loaded image.
	// Permanent until the table is regenerated against the loaded binary.
	OffsetOutOfRange
	// SuspectStale means the plausibility probe rejected the address.
	// Warning grade: false positives are possible.
	SuspectStale
)

// Sentinel values for errors.Is matching against a *ResolveError.
var (
	ErrUnknownInterface error = UnknownInterface
	ErrModuleNotLoaded  error = ModuleNotLoaded
	ErrOffsetOutOfRange error = OffsetOutOfRange
	ErrSuspectStale     error = SuspectStale
)

func (k Kind) String() string {
	switch k {
	case UnknownInterface:
		return "UnknownInterface"
	case ModuleNotLoaded:
		return "ModuleNotLoaded"
	case OffsetOutOfRange:
		return "OffsetOutOfRange"
	case SuspectStale:
		return "SuspectStale"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) Error() string {
	switch k {
	case UnknownInterface:
		return "unknown interface"
	case ModuleNotLoaded:
		return "module not loaded"
	case OffsetOutOfRange:
		return "offset out of range"
	case SuspectStale:
		return "suspect stale"
	default:
		return k.String()
	}
}

// ResolveError is the structured failure returned by every layer of
// interface resolution. Fields that do not apply to a kind are zero.
type ResolveError struct {
	Kind      Kind
	Module    string
	Interface string
	Offset    int64
	Base      uint64
	Size      uint64
	Address   uint64
	// Reason is a short human readable explanation from the guard.
	Reason string
	// Err is an optional underlying cause (e.g. an OS error from a probe).
	Err error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Module != "" || e.Interface != "" {
		fmt.Fprintf(&b, ": %s!%s", e.Module, e.Interface)
	}
	switch e.Kind {
	case OffsetOutOfRange:
		fmt.Fprintf(&b, " (offset %#x, image %#x+%#x)", e.Offset, e.Base, e.Size)
	case SuspectStale:
		fmt.Fprintf(&b, " at %#x", e.Address)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of this error.
func (e *ResolveError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind carried by err, or 0 if err is not a resolution error.
func KindOf(err error) Kind {
	var re *ResolveError
	if stderrors.As(err, &re) {
		return re.Kind
	}
	var k Kind
	if stderrors.As(err, &k) {
		return k
	}
	return 0
}

// IsTransient reports whether retrying the same lookup later may succeed.
func IsTransient(err error) bool {
	return KindOf(err) == ModuleNotLoaded
}

// IsWarning reports whether err is a warning-grade result rather than a hard
// failure.
func IsWarning(err error) bool {
	return KindOf(err) == SuspectStale
}
