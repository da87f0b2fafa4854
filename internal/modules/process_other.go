//go:build !linux && !windows

package modules

import "fmt"

// NewProcessSource returns an error on platforms without a native module
// enumerator.
func NewProcessSource(pid int) (Source, error) {
	return nil, fmt.Errorf("module enumeration is only supported on Linux and Windows")
}
