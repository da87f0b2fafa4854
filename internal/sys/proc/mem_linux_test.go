//go:build linux

package proc

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ReadMemorySelf(t *testing.T) {
	src := []byte("Source2Client002")
	addr := uint64(uintptr(unsafe.Pointer(&src[0])))

	out := make([]byte, len(src))
	n, err := FS{}.ReadMemory(os.Getpid(), addr, out)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, out)

	n, err = FS{}.ReadMemory(os.Getpid(), addr, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFS_ReadMemoryUnmapped(t *testing.T) {
	out := make([]byte, 8)
	_, err := FS{}.ReadMemory(os.Getpid(), 0x10, out)
	assert.Error(t, err)
}
