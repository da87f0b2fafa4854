// Package modules locates loaded native modules in a target process and
// tracks their base addresses across unloads and reloads.
package modules

import (
	"context"
	"sort"
	"strings"

	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/sys/proc"
)

// Region is one loaded image as reported by a Source.
type Region struct {
	// Name is the canonical (lower-case file) name of the image.
	Name string
	// Path is the full path the image was mapped from, when known.
	Path string
	Base uint64
	Size uint64
}

// End returns the first address past the image.
func (r Region) End() uint64 { return r.Base + r.Size }

// Source enumerates the images currently loaded in a process.
type Source interface {
	Modules(ctx context.Context) ([]Region, error)
}

// ProcSource reads the module list of a Linux process from /proc/<pid>/maps.
// Every mapping of one backing file is folded into a single image spanning
// from its lowest start to its highest end, which matches the image view a
// PE loader (e.g. under Wine) or ld.so gives.
type ProcSource struct {
	FS  proc.FS
	PID int
}

// Modules implements Source.
func (s ProcSource) Modules(ctx context.Context) ([]Region, error) {
	mappings, err := s.FS.ReadMaps(s.PID)
	if err != nil {
		return nil, err
	}
	return regionsFromMappings(mappings), nil
}

func regionsFromMappings(mappings []proc.Mapping) []Region {
	byPath := make(map[string]*Region)
	var order []string

	for _, m := range mappings {
		// Skip anonymous memory and pseudo files such as [heap] or [vdso].
		if m.Path == "" || strings.HasPrefix(m.Path, "[") {
			continue
		}
		path := strings.TrimSuffix(m.Path, " (deleted)")
		r, ok := byPath[path]
		if !ok {
			byPath[path] = &Region{
				Name: offsets.CanonicalModule(path),
				Path: path,
				Base: m.Start,
				Size: m.Size(),
			}
			order = append(order, path)
			continue
		}
		end := max(r.End(), m.End)
		r.Base = min(r.Base, m.Start)
		r.Size = end - r.Base
	}

	regions := make([]Region, 0, len(order))
	for _, path := range order {
		regions = append(regions, *byPath[path])
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Base < regions[j].Base })
	return regions
}
