// Package offsets holds the immutable table of interface offsets keyed by
// (module, interface name).
//
// A Table is built once, from the embedded resource or from a file produced
// by the dumper, and is never mutated afterwards. It is safe for concurrent
// use without synchronization. Runtime replacement of the whole table goes
// through Store.
package offsets

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
)

// Meta describes where a table came from. None of the fields take part in
// lookups; they exist so a stale table can be correlated with the binary
// build it was generated against.
type Meta struct {
	// Version is the table format version.
	Version int
	// Generator names the tool that produced the offsets.
	Generator string
	// GeneratedAt is when the offsets were discovered.
	GeneratedAt time.Time
	// BuildNumber is the target binary build, when the generator recorded it.
	BuildNumber uint32
}

// Record is one (module, interface, offset) row.
type Record struct {
	Module    string
	Interface string
	Offset    Offset
}

// Table is an immutable two-level mapping module -> interface -> offset.
type Table struct {
	meta        Meta
	modules     map[string]map[string]Offset
	size        int
	fingerprint uint64
}

// CanonicalModule normalizes a module identifier: any directory part is
// dropped and the file name is lower-cased, so "C:\game\bin\Client.DLL" and
// "client.dll" name the same module.
func CanonicalModule(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// New builds a table from records. Every invalid record is reported; the
// returned error aggregates all of them.
func New(meta Meta, records []Record) (*Table, error) {
	t := &Table{
		meta:    meta,
		modules: make(map[string]map[string]Offset),
	}

	var result *multierror.Error
	for i, r := range records {
		module := CanonicalModule(r.Module)
		if module == "" {
			result = multierror.Append(result, fmt.Errorf("record %d: empty module name", i))
			continue
		}
		if strings.TrimSpace(r.Interface) == "" {
			result = multierror.Append(result, fmt.Errorf("record %d: empty interface name in module %s", i, module))
			continue
		}

		ifaces, ok := t.modules[module]
		if !ok {
			ifaces = make(map[string]Offset)
			t.modules[module] = ifaces
		}
		if prev, dup := ifaces[r.Interface]; dup {
			result = multierror.Append(result, fmt.Errorf(
				"record %d: duplicate interface %s in module %s (%s and %s)",
				i, r.Interface, module, prev, r.Offset))
			continue
		}
		ifaces[r.Interface] = r.Offset
		t.size++
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid offset table: %w", err)
	}

	t.fingerprint = t.computeFingerprint()
	return t, nil
}

// FromMap builds a table from the nested module -> interface -> offset shape
// used by the file formats.
func FromMap(meta Meta, modules map[string]map[string]Offset) (*Table, error) {
	var records []Record
	for _, module := range sortedKeys(modules) {
		ifaces := modules[module]
		for _, name := range sortedKeys(ifaces) {
			records = append(records, Record{Module: module, Interface: name, Offset: ifaces[name]})
		}
	}
	return New(meta, records)
}

// Lookup returns the offset stored for (module, iface). Module names compare
// case-insensitively; interface names are exact, so versioned names such as
// Source2Client001 and Source2Client002 stay distinct.
func (t *Table) Lookup(module, iface string) (Offset, bool) {
	ifaces, ok := t.modules[CanonicalModule(module)]
	if !ok {
		return 0, false
	}
	off, ok := ifaces[iface]
	return off, ok
}

// Resolve is Lookup with a structured UnknownInterface error for absent pairs.
func (t *Table) Resolve(module, iface string) (Offset, error) {
	off, ok := t.Lookup(module, iface)
	if !ok {
		return 0, &rerrors.ResolveError{
			Kind:      rerrors.UnknownInterface,
			Module:    CanonicalModule(module),
			Interface: iface,
		}
	}
	return off, nil
}

// HasModule reports whether any interface is recorded for module.
func (t *Table) HasModule(module string) bool {
	_, ok := t.modules[CanonicalModule(module)]
	return ok
}

// Meta returns the table metadata.
func (t *Table) Meta() Meta { return t.meta }

// Len returns the number of records.
func (t *Table) Len() int { return t.size }

// Modules returns the canonical module names in sorted order.
func (t *Table) Modules() []string {
	return sortedKeys(t.modules)
}

// Interfaces returns the interface names of module in sorted order.
func (t *Table) Interfaces(module string) []string {
	return sortedKeys(t.modules[CanonicalModule(module)])
}

// Records returns every row, sorted by module then interface.
func (t *Table) Records() []Record {
	records := make([]Record, 0, t.size)
	for _, module := range t.Modules() {
		ifaces := t.modules[module]
		for _, name := range sortedKeys(ifaces) {
			records = append(records, Record{Module: module, Interface: name, Offset: ifaces[name]})
		}
	}
	return records
}

// Fingerprint is an xxh3 hash over the sorted records. Two tables with the
// same fingerprint serve identical lookups regardless of their metadata.
func (t *Table) Fingerprint() uint64 { return t.fingerprint }

func (t *Table) computeFingerprint() uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, r := range t.Records() {
		_, _ = h.WriteString(r.Module)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(r.Interface)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Offset))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
