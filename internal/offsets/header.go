package offsets

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	"github.com/grafana/regexp"
)

var (
	headerGeneratorRe = regexp.MustCompile(`^//\s*Generated using\s+(\S+)`)
	headerTimeRe      = regexp.MustCompile(`^//\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?) UTC`)
	headerModuleRe    = regexp.MustCompile(`^//\s*Module:\s*(\S+)`)
	headerConstRe     = regexp.MustCompile(`^constexpr\s+std::ptrdiff_t\s+(\w+)\s*=\s*(-?(?:0[xX][0-9A-Fa-f]+|\d+))\s*;`)
)

const headerTimeLayout = "2006-01-02 15:04:05.999999999"

// ParseHeader parses the C++ header the dumper generates:
//
//	// Generated using https://github.com/a2x/cs2-dumper
//	// 2025-09-11 07:42:49.512547700 UTC
//	// Module: client.dll
//	namespace client_dll {
//	    constexpr std::ptrdiff_t Source2Client002 = 0x1E2D410;
//
// Module names come from the "// Module:" comments; namespace identifiers
// are ignored.
func ParseHeader(data []byte) (*Table, error) {
	meta := Meta{Version: FormatVersion}
	var (
		records []Record
		module  string
		lineNo  int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if m := headerModuleRe.FindSubmatch(line); m != nil {
			module = string(m[1])
			continue
		}
		if m := headerConstRe.FindSubmatch(line); m != nil {
			if module == "" {
				return nil, fmt.Errorf("line %d: constant %s outside of a module section", lineNo, m[1])
			}
			off, err := ParseOffset(string(m[2]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			records = append(records, Record{Module: module, Interface: string(m[1]), Offset: off})
			continue
		}
		if m := headerGeneratorRe.FindSubmatch(line); m != nil {
			meta.Generator = string(m[1])
			continue
		}
		if m := headerTimeRe.FindSubmatch(line); m != nil {
			ts, err := time.ParseInLocation(headerTimeLayout, string(m[1]), time.UTC)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid timestamp: %w", lineNo, err)
			}
			meta.GeneratedAt = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("header contains no offsets")
	}

	return New(meta, records)
}
