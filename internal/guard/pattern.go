package guard

import (
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a byte signature with wildcards, written IDA style:
// "48 8B 05 ?? ?? ?? ?? C3". A single "?" is also accepted as a wildcard.
type Pattern struct {
	bytes []byte
	mask  []bool // true = byte must match
	text  string
}

// ParsePattern parses a space separated signature.
func ParsePattern(s string) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Pattern{}, fmt.Errorf("empty pattern")
	}

	p := Pattern{
		bytes: make([]byte, len(fields)),
		mask:  make([]bool, len(fields)),
		text:  strings.Join(fields, " "),
	}
	for i, f := range fields {
		if f == "?" || f == "??" {
			continue
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("pattern byte %d %q: %w", i, f, err)
		}
		p.bytes[i] = byte(v)
		p.mask[i] = true
	}
	return p, nil
}

// MustParsePattern is ParsePattern for constant signatures.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of bytes the pattern covers.
func (p Pattern) Len() int { return len(p.bytes) }

// IsZero reports whether p is the empty pattern.
func (p Pattern) IsZero() bool { return len(p.bytes) == 0 }

// Match reports whether buf starts with the pattern.
func (p Pattern) Match(buf []byte) bool {
	if len(buf) < len(p.bytes) {
		return false
	}
	for i, b := range p.bytes {
		if p.mask[i] && buf[i] != b {
			return false
		}
	}
	return true
}

func (p Pattern) String() string { return p.text }
