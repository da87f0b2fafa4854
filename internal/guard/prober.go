package guard

import (
	"context"
	"io"
)

// Protection describes the memory region containing an address.
type Protection struct {
	Mapped bool
	Read   bool
	Write  bool
	Exec   bool
}

// Prober inspects the memory of the process the modules are loaded in.
type Prober interface {
	// Protection returns the protection of the region containing addr.
	// An unmapped address is not an error; it yields Mapped == false.
	Protection(ctx context.Context, addr uint64) (Protection, error)
	// ReadAt copies memory at addr into buf.
	ReadAt(ctx context.Context, addr uint64, buf []byte) (int, error)
}

// ProcessProber is a Prober holding OS resources.
type ProcessProber interface {
	Prober
	io.Closer
}
