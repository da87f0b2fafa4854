package modules

import (
	"context"
	"sort"
	"sync"

	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
)

// StaticSource is an in-memory module list. It backs offline use and tests
// that simulate loads, unloads and reloads.
type StaticSource struct {
	mu      sync.Mutex
	regions map[string]Region
	err     error
	calls   int
}

// NewStaticSource returns a source reporting regions.
func NewStaticSource(regions ...Region) *StaticSource {
	s := &StaticSource{regions: make(map[string]Region)}
	for _, r := range regions {
		s.Load(r)
	}
	return s
}

// Load adds r, replacing any region mapped from the same path (or with the
// same name when r has no path). Loading an existing module at a new base
// simulates a reload.
func (s *StaticSource) Load(r Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Name == "" {
		r.Name = offsets.CanonicalModule(r.Path)
	}
	r.Name = offsets.CanonicalModule(r.Name)
	s.regions[regionKey(r)] = r
}

// Unload removes every region named name.
func (s *StaticSource) Unload(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = offsets.CanonicalModule(name)
	for k, r := range s.regions {
		if r.Name == name {
			delete(s.regions, k)
		}
	}
}

// SetError makes subsequent Modules calls fail with err (nil clears it).
func (s *StaticSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Modules was called.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Modules implements Source.
func (s *StaticSource) Modules(ctx context.Context) ([]Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	regions := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Base < regions[j].Base })
	return regions, nil
}

func regionKey(r Region) string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}
