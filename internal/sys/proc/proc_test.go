package proc

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMaps = `7ff600000000-7ff600001000 r--p 00000000 08:01 4242 /opt/cs2/bin/client.dll
7ff600001000-7ff601800000 r-xp 00001000 08:01 4242 /opt/cs2/bin/client.dll
7ff601800000-7ff602000000 rw-p 01800000 08:01 4242 /opt/cs2/bin/client.dll
7ff610000000-7ff610010000 rw-p 00000000 00:00 0
7ff620000000-7ff620100000 r-xp 00000000 08:01 77 /home/user/My Games/engine2.dll
7ffd00000000-7ffd00021000 rw-p 00000000 00:00 0                          [stack]
`

func TestParseMaps(t *testing.T) {
	mappings, err := ParseMaps([]byte(sampleMaps))
	require.NoError(t, err)
	require.Len(t, mappings, 6)

	first := mappings[0]
	assert.Equal(t, uint64(0x7ff600000000), first.Start)
	assert.Equal(t, uint64(0x7ff600001000), first.End)
	assert.Equal(t, uint64(0x1000), first.Size())
	assert.Equal(t, "r--p", first.Perms.String())
	assert.Equal(t, uint64(4242), first.Inode)
	assert.Equal(t, "/opt/cs2/bin/client.dll", first.Path)

	text := mappings[1]
	assert.True(t, text.Perms.Exec)
	assert.Equal(t, uint64(0x1000), text.Offset)
	assert.True(t, text.Contains(0x7ff601000000))
	assert.False(t, text.Contains(0x7ff601800000))

	assert.Equal(t, "", mappings[3].Path, "anonymous mapping")
	assert.Equal(t, "/home/user/My Games/engine2.dll", mappings[4].Path, "path with spaces")
	assert.Equal(t, "[stack]", mappings[5].Path)
}

func TestParseMaps_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad range", data: "7ff6 r-xp 00000000 08:01 1 /x\n"},
		{name: "bad start", data: "zz-7ff6 r-xp 00000000 08:01 1 /x\n"},
		{name: "end before start", data: "2000-1000 r-xp 00000000 08:01 1 /x\n"},
		{name: "bad perms", data: "1000-2000 rx 00000000 08:01 1 /x\n"},
		{name: "bad inode", data: "1000-2000 r-xp 00000000 08:01 abc /x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMaps([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFS_ReadMaps(t *testing.T) {
	root := t.TempDir()
	pidDir := filepath.Join(root, "4321")
	require.NoError(t, os.MkdirAll(pidDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pidDir, "maps"), []byte(sampleMaps), 0o644))
	require.NoError(t, os.Symlink("/opt/cs2/bin/cs2", filepath.Join(pidDir, "exe")))

	fs := FS{Root: root}

	mappings, err := fs.ReadMaps(4321)
	require.NoError(t, err)
	assert.Len(t, mappings, 6)

	exe, err := fs.ExePath(4321)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cs2/bin/cs2", exe)

	assert.Equal(t, filepath.Join(root, "4321", "mem"), fs.MemPath(4321))

	_, err = fs.ReadMaps(9999)
	assert.Error(t, err)
}

func TestFS_ReadMapsSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/maps"); err != nil {
		t.Skip("procfs not available")
	}

	mappings, err := FS{}.ReadMaps(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, mappings)
}

func TestFindPidByName(t *testing.T) {
	if _, err := os.Stat("/proc/self"); err != nil {
		t.Skip("procfs not available")
	}
	ctx := context.Background()

	pid, err := FindPidByName(ctx, "no-such-process-"+strconv.Itoa(os.Getpid()))
	require.NoError(t, err)
	assert.Equal(t, 0, pid)

	exe, err := os.Executable()
	require.NoError(t, err)
	name := filepath.Base(exe)
	if len(name) > 15 {
		t.Skip("process name truncated by the kernel")
	}

	pid, err = FindPidByName(ctx, name)
	require.NoError(t, err)
	assert.Positive(t, pid)
}

func TestNormalizeProcessName(t *testing.T) {
	assert.Equal(t, "cs2", normalizeProcessName("cs2.exe"))
	assert.Equal(t, "cs2", normalizeProcessName(" CS2.EXE "))
	assert.Equal(t, "cs2", normalizeProcessName("cs2"))
}
