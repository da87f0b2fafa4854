//go:build !linux

package proc

import "fmt"

// ReadMemory returns an error on non-Linux platforms.
func (fs FS) ReadMemory(pid int, addr uint64, buf []byte) (int, error) {
	return 0, fmt.Errorf("reading process memory through procfs is only supported on Linux")
}
