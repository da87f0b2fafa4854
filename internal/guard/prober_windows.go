//go:build windows

package guard

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WindowsProber probes a process through VirtualQueryEx and
// ReadProcessMemory.
type WindowsProber struct {
	handle windows.Handle
}

// NewProcessProber opens pid for querying and reading. Zero means the
// calling process.
func NewProcessProber(pid int) (ProcessProber, error) {
	if pid == 0 {
		return &WindowsProber{handle: windows.CurrentProcess()}, nil
	}
	if pid < 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, err)
	}
	return &WindowsProber{handle: h}, nil
}

// Protection implements Prober.
func (p *WindowsProber) Protection(ctx context.Context, addr uint64) (Protection, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(p.handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Protection{}, fmt.Errorf("VirtualQueryEx at %#x: %w", addr, err)
	}
	if mbi.State != windows.MEM_COMMIT {
		return Protection{}, nil
	}
	if mbi.Protect&windows.PAGE_GUARD != 0 || mbi.Protect&windows.PAGE_NOACCESS != 0 {
		return Protection{Mapped: true}, nil
	}

	prot := Protection{Mapped: true}
	switch mbi.Protect &^ 0x700 { // strip PAGE_GUARD, PAGE_NOCACHE, PAGE_WRITECOMBINE
	case windows.PAGE_READONLY:
		prot.Read = true
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		prot.Read, prot.Write = true, true
	case windows.PAGE_EXECUTE:
		prot.Exec = true
	case windows.PAGE_EXECUTE_READ:
		prot.Read, prot.Exec = true, true
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		prot.Read, prot.Write, prot.Exec = true, true, true
	}
	return prot, nil
}

// ReadAt implements Prober.
func (p *WindowsProber) ReadAt(ctx context.Context, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		return int(n), fmt.Errorf("ReadProcessMemory at %#x: %w", addr, err)
	}
	return int(n), nil
}

// Close releases the process handle.
func (p *WindowsProber) Close() error {
	if p.handle == windows.CurrentProcess() {
		return nil
	}
	return windows.CloseHandle(p.handle)
}
