//go:build windows

package modules

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
)

// ToolhelpSource enumerates the modules of a Windows process with a
// Toolhelp32 snapshot.
type ToolhelpSource struct {
	PID uint32
}

// NewProcessSource returns the native Source for pid. Zero means the
// calling process.
func NewProcessSource(pid int) (Source, error) {
	if pid == 0 {
		return ToolhelpSource{PID: windows.GetCurrentProcessId()}, nil
	}
	if pid < 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	return ToolhelpSource{PID: uint32(pid)}, nil
}

// Modules implements Source.
func (s ToolhelpSource) Modules(ctx context.Context) ([]Region, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, s.PID)
	if err != nil {
		return nil, fmt.Errorf("module snapshot of pid %d: %w", s.PID, err)
	}
	defer windows.CloseHandle(snap) // nolint:errcheck

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var regions []Region
	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		path := windows.UTF16ToString(entry.ExePath[:])
		regions = append(regions, Region{
			Name: offsets.CanonicalModule(windows.UTF16ToString(entry.Module[:])),
			Path: path,
			Base: uint64(entry.ModBaseAddr),
			Size: uint64(entry.ModBaseSize),
		})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("walk modules of pid %d: %w", s.PID, err)
	}
	return regions, nil
}
