package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swatzat-oss/cs2-dumper/internal/constants"
)

func TestNewLoader_ConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(constants.EnvConfigDir, dir)

	loader := NewLoader()
	assert.Equal(t, filepath.Join(dir, constants.ConfigFile), loader.Path())
}

func TestLoader_DefaultsWhenMissing(t *testing.T) {
	loader := NewLoaderAt(t.TempDir())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_SaveAndLoad(t *testing.T) {
	loader := NewLoaderAt(filepath.Join(t.TempDir(), "nested"))

	cfg := Default()
	cfg.Target.Process = "cs2.exe"
	cfg.Target.PreferredPaths = map[string]string{"tier0.dll": "/games/cs2/bin/linuxsteamrt64/libtier0.so"}
	cfg.Table.Path = "/opt/cs2-dumper/interfaces.json"
	cfg.Guard.Strict = false
	cfg.Guard.Patterns = []PatternConfig{{Module: "client.dll", Interface: "Source2Client002", Pattern: "48 8B ??"}}
	cfg.Watch.Interval = 500 * time.Millisecond

	require.NoError(t, loader.Save(cfg))
	assert.FileExists(t, loader.Path())

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoader_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	data := `version: "1"
target:
  process: cs2.exe
watch:
  interval: 250ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ConfigFile), []byte(data), 0o644))

	cfg, err := NewLoaderAt(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "cs2.exe", cfg.Target.Process)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Interval)
	assert.True(t, cfg.Guard.Strict)
	assert.Equal(t, 20, cfg.Wait.MaxRetries)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{name: "unknown field", data: "version: \"1\"\ncolony: x\n", errMsg: "field colony not found"},
		{name: "bad yaml", data: "version: [\n", errMsg: "failed to parse config"},
		{name: "invalid value", data: "version: \"1\"\nwatch:\n  interval: 0s\n", errMsg: "interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ConfigFile), []byte(tt.data), 0o644))

			_, err := NewLoaderAt(dir).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoader_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ConfigFile), nil, 0o644))

	cfg, err := NewLoaderAt(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ConfigFile), []byte("version: \"1\"\ntarget:\n  process: cs2\n"), 0o644))

	t.Setenv("CS2_DUMPER_PID", "0x1F40")
	t.Setenv("CS2_DUMPER_GUARD_STRICT", "false")

	cfg, err := NewLoaderAt(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Target.PID)
	assert.False(t, cfg.Guard.Strict)
}
