package offsets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swatzat-oss/cs2-dumper/internal/safe"
)

// FormatVersion is the current version of the YAML table format.
const FormatVersion = 1

// document is the on-disk YAML table:
//
//	version: 1
//	generator: cs2-dumper
//	generated_at: 2025-09-11T07:42:49Z
//	build_number: 14100
//	modules:
//	  client.dll:
//	    Source2Client002: 0x1E2D410
type document struct {
	Version     int                          `yaml:"version"`
	Generator   string                       `yaml:"generator,omitempty"`
	GeneratedAt time.Time                    `yaml:"generated_at,omitempty"`
	BuildNumber uint32                       `yaml:"build_number,omitempty"`
	Modules     map[string]map[string]Offset `yaml:"modules"`
}

// ParseYAML parses the versioned YAML table format. Unknown keys are
// rejected.
func ParseYAML(data []byte) (*Table, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse offset table: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported offset table version %d (max %d)", doc.Version, FormatVersion)
	}
	if doc.Modules == nil {
		return nil, fmt.Errorf("offset table has no modules section")
	}

	return FromMap(Meta{
		Version:     doc.Version,
		Generator:   doc.Generator,
		GeneratedAt: doc.GeneratedAt,
		BuildNumber: doc.BuildNumber,
	}, doc.Modules)
}

// ParseJSON parses the dumper's interfaces.json shape, a bare
// {"module": {"interface": offset}} object. JSON is decoded with the YAML
// parser since every JSON document is valid YAML.
func ParseJSON(data []byte) (*Table, error) {
	var modules map[string]map[string]Offset
	if err := yaml.Unmarshal(data, &modules); err != nil {
		return nil, fmt.Errorf("failed to parse offset json: %w", err)
	}
	if modules == nil {
		return nil, fmt.Errorf("offset json is empty")
	}
	return FromMap(Meta{Version: FormatVersion, Generator: "json"}, modules)
}

// Parse picks a parser from the file name extension.
func Parse(name string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	case ".hpp", ".h":
		return ParseHeader(data)
	default:
		return nil, fmt.Errorf("unsupported offset table format %q", filepath.Ext(name))
	}
}

// LoadFile reads and parses a table file. Symlinks are followed since
// generated tables are commonly linked into place.
func LoadFile(path string) (*Table, error) {
	data, err := safe.ReadFile(path, &safe.ReadFileOptions{AllowSymlinks: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read offset table: %w", err)
	}
	t, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
