package guard

import (
	"context"
	"sort"

	"github.com/swatzat-oss/cs2-dumper/internal/sys/proc"
)

// ProcProber probes a Linux process through procfs. Every Protection call
// re-reads the maps file so an unload between resolution and probing is seen.
type ProcProber struct {
	FS  proc.FS
	PID int
}

// Protection implements Prober.
func (p ProcProber) Protection(ctx context.Context, addr uint64) (Protection, error) {
	mappings, err := p.FS.ReadMaps(p.PID)
	if err != nil {
		return Protection{}, err
	}
	i := sort.Search(len(mappings), func(i int) bool { return mappings[i].End > addr })
	if i == len(mappings) || !mappings[i].Contains(addr) {
		return Protection{}, nil
	}
	perms := mappings[i].Perms
	return Protection{Mapped: true, Read: perms.Read, Write: perms.Write, Exec: perms.Exec}, nil
}

// ReadAt implements Prober.
func (p ProcProber) ReadAt(ctx context.Context, addr uint64, buf []byte) (int, error) {
	return p.FS.ReadMemory(p.PID, addr, buf)
}

// Close implements io.Closer; procfs probing holds no resources.
func (p ProcProber) Close() error { return nil }
