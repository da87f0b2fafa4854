// Package proc provides utilities for inspecting a process through the /proc
// filesystem: its memory mappings, its executable and its memory.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultRoot is the mount point of procfs.
const DefaultRoot = "/proc"

// Perms are the permission bits of one mapping.
type Perms struct {
	Read    bool
	Write   bool
	Exec    bool
	Private bool
}

func (p Perms) String() string {
	b := []byte("----")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Exec {
		b[2] = 'x'
	}
	if p.Private {
		b[3] = 'p'
	} else {
		b[3] = 's'
	}
	return string(b)
}

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	Start  uint64
	End    uint64
	Perms  Perms
	Offset uint64
	Inode  uint64
	// Path is the backing file, a pseudo name such as [heap], or empty for
	// anonymous memory.
	Path string
}

// Size returns the length of the mapping in bytes.
func (m Mapping) Size() uint64 { return m.End - m.Start }

// Contains reports whether addr lies in [Start, End).
func (m Mapping) Contains(addr uint64) bool { return addr >= m.Start && addr < m.End }

// FS reads process information below a procfs root. The zero value reads
// from /proc; tests point Root at a fabricated tree.
type FS struct {
	Root string
}

func (fs FS) root() string {
	if fs.Root == "" {
		return DefaultRoot
	}
	return fs.Root
}

// ReadMaps reads and parses /proc/<pid>/maps.
func (fs FS) ReadMaps(pid int) ([]Mapping, error) {
	path := filepath.Join(fs.root(), strconv.Itoa(pid), "maps")
	data, err := os.ReadFile(path) // #nosec G304: pid is int so it's safe
	if err != nil {
		return nil, fmt.Errorf("failed to read maps: %w", err)
	}
	return ParseMaps(data)
}

// ExePath returns the path to the executable for the given PID.
func (fs FS) ExePath(pid int) (string, error) {
	return os.Readlink(filepath.Join(fs.root(), strconv.Itoa(pid), "exe"))
}

// MemPath returns the path of the /proc/<pid>/mem file.
func (fs FS) MemPath(pid int) string {
	return filepath.Join(fs.root(), strconv.Itoa(pid), "mem")
}

// ParseMaps parses the contents of a maps file.
// Format: address           perms offset  dev   inode   pathname
// Example: 555555554000-555555556000 r-xp 00000000 08:01 123456 /path/to/binary
func ParseMaps(data []byte) ([]Mapping, error) {
	var mappings []Mapping

	for n, line := range bytes.Split(data, []byte("\n")) {
		fields := bytes.Fields(line)
		if len(fields) < 5 {
			continue
		}

		addrs := bytes.SplitN(fields[0], []byte("-"), 2)
		if len(addrs) != 2 {
			return nil, fmt.Errorf("line %d: malformed address range %q", n+1, fields[0])
		}
		start, err := strconv.ParseUint(string(addrs[0]), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing start address: %w", n+1, err)
		}
		end, err := strconv.ParseUint(string(addrs[1]), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing end address: %w", n+1, err)
		}
		if end < start {
			return nil, fmt.Errorf("line %d: end %#x before start %#x", n+1, end, start)
		}

		perm := fields[1]
		if len(perm) < 4 {
			return nil, fmt.Errorf("line %d: malformed permissions %q", n+1, perm)
		}

		offset, err := strconv.ParseUint(string(fields[2]), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing file offset: %w", n+1, err)
		}
		inode, err := strconv.ParseUint(string(fields[4]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing inode: %w", n+1, err)
		}

		// Paths may contain spaces; everything after the inode column is the path.
		var path string
		if len(fields) > 5 {
			path = string(bytes.Join(fields[5:], []byte(" ")))
		}

		mappings = append(mappings, Mapping{
			Start: start,
			End:   end,
			Perms: Perms{
				Read:    perm[0] == 'r',
				Write:   perm[1] == 'w',
				Exec:    perm[2] == 'x',
				Private: perm[3] == 'p',
			},
			Offset: offset,
			Inode:  inode,
			Path:   path,
		})
	}

	return mappings, nil
}

// FindPidByName returns the PID of the running process whose name matches
// name. Names compare case-insensitively and a trailing ".exe" is ignored, so
// "cs2" finds "cs2.exe" under Wine. When several processes match the lowest
// PID wins. Returns 0 when nothing matches.
func FindPidByName(ctx context.Context, name string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	want := normalizeProcessName(name)
	var pids []int
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process exited or permission denied.
		}
		if normalizeProcessName(pname) == want {
			pids = append(pids, int(p.Pid))
		}
	}
	if len(pids) == 0 {
		return 0, nil
	}
	// Sort PIDs (lowest first).
	sort.Ints(pids)
	return pids[0], nil
}

func normalizeProcessName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}
