// Package safe provides overflow-checked address arithmetic and guarded file
// access.
package safe

import (
	"math"
)

// AddOffset computes base+off for a signed byte offset.
// Returns the result and false if the sum would wrap around the 64-bit
// address space in either direction.
func AddOffset(base uint64, off int64) (uint64, bool) {
	if off >= 0 {
		sum := base + uint64(off)
		if sum < base {
			return 0, false
		}
		return sum, true
	}
	// -math.MinInt64 overflows int64; take the magnitude in uint64 space.
	var mag uint64
	if off == math.MinInt64 {
		mag = 1 << 63
	} else {
		mag = uint64(-off)
	}
	if mag > base {
		return 0, false
	}
	return base - mag, true
}

// InRange reports whether addr lies in the half-open interval [base, base+size).
func InRange(addr, base, size uint64) bool {
	if addr < base {
		return false
	}
	return addr-base < size
}

// Uint64ToInt64 safely converts an uint64 value to int64, clamping to math.MaxInt64 if overflow
// would occur.
// Returns the converted value and a boolean indicating whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}
