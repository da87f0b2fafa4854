//go:build linux

package modules

import (
	"os"

	"github.com/swatzat-oss/cs2-dumper/internal/sys/proc"
)

// NewProcessSource returns the native Source for pid. Zero means the
// calling process.
func NewProcessSource(pid int) (Source, error) {
	if pid == 0 {
		pid = os.Getpid()
	}
	return ProcSource{FS: proc.FS{}, PID: pid}, nil
}
