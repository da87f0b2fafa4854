package offsets

import "sync/atomic"

// Store holds the table currently in use. Tables themselves never change;
// regenerating offsets means swapping in a new one.
type Store struct {
	current atomic.Pointer[Table]
}

// NewStore returns a store serving t.
func NewStore(t *Table) *Store {
	s := &Store{}
	s.current.Store(t)
	return s
}

// Load returns the current table.
func (s *Store) Load() *Table {
	return s.current.Load()
}

// Swap installs t and returns the table it replaced.
func (s *Store) Swap(t *Table) *Table {
	return s.current.Swap(t)
}
