package offsets

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Offset is a signed byte displacement from a module's image base.
type Offset int64

// ParseOffset parses a decimal or 0x-prefixed hexadecimal offset.
// Values that only fit an unsigned 64-bit integer are taken as the two's
// complement encoding of a negative offset, which is how the dumper prints
// ptrdiff_t values below zero (0xFFFFFFFF8BB1AE0A == -0x744E51F6).
func ParseOffset(s string) (Offset, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return Offset(v), nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return Offset(int64(u)), nil
}

// String formats the offset as signed upper-case hex, e.g. 0x1E2D410 or -0x744E51F6.
func (o Offset) String() string {
	if o < 0 {
		return "-0x" + strings.ToUpper(strconv.FormatUint(-uint64(o), 16))
	}
	return "0x" + strings.ToUpper(strconv.FormatUint(uint64(o), 16))
}

// UnmarshalYAML accepts integer and string scalars in any base ParseOffset
// understands.
func (o *Offset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: offset must be a scalar", value.Line)
	}
	v, err := ParseOffset(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*o = v
	return nil
}
