//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/swatzat-oss/cs2-dumper/internal/safe"
)

// ReadMemory copies len(buf) bytes at addr in process pid into buf.
// It uses process_vm_readv and falls back to /proc/<pid>/mem when the
// syscall is unavailable (ENOSYS) or blocked by a seccomp policy (EPERM).
func (fs FS) ReadMemory(pid int, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(pid, local, remote, 0)
	if err == nil {
		if n < len(buf) {
			return n, io.ErrUnexpectedEOF
		}
		return n, nil
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EPERM) {
		return 0, fmt.Errorf("process_vm_readv at %#x: %w", addr, err)
	}

	return fs.readMemFile(pid, addr, buf)
}

func (fs FS) readMemFile(pid int, addr uint64, buf []byte) (int, error) {
	off, clamped := safe.Uint64ToInt64(addr)
	if clamped {
		return 0, fmt.Errorf("address %#x beyond readable range", addr)
	}

	f, err := os.Open(fs.MemPath(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to open process memory: %w", err)
	}
	defer f.Close() // nolint:errcheck

	n, err := f.ReadAt(buf, off)
	if err != nil {
		return n, fmt.Errorf("read process memory at %#x: %w", addr, err)
	}
	return n, nil
}
