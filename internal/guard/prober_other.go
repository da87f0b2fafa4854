//go:build !linux && !windows

package guard

import "fmt"

// NewProcessProber returns an error on platforms without a native prober.
func NewProcessProber(pid int) (ProcessProber, error) {
	return nil, fmt.Errorf("memory probing is only supported on Linux and Windows")
}
