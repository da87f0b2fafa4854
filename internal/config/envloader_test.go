package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CS2_DUMPER_PROCESS", "cs2.exe")
	t.Setenv("CS2_DUMPER_PID", "31337")
	t.Setenv("CS2_DUMPER_PREFERRED_PATHS", "tier0.dll = /a/tier0.dll, client.dll=/b/client.dll")
	t.Setenv("CS2_DUMPER_TABLE", "/tmp/interfaces.hpp")
	t.Setenv("CS2_DUMPER_GUARD_REQUIRE_EXECUTABLE", "true")
	t.Setenv("CS2_DUMPER_REFRESH_INTERVAL", "750ms")
	t.Setenv("CS2_DUMPER_REVALIDATE", "true")
	t.Setenv("CS2_DUMPER_WAIT_JITTER", "0.25")
	t.Setenv("CS2_DUMPER_LOG_LEVEL", "debug")
	t.Setenv("CS2_DUMPER_METRICS_ADDR", "127.0.0.1:9310")

	cfg := Default()
	require.NoError(t, LoadFromEnv(cfg))

	assert.Equal(t, "cs2.exe", cfg.Target.Process)
	assert.Equal(t, 31337, cfg.Target.PID)
	assert.Equal(t, map[string]string{"tier0.dll": "/a/tier0.dll", "client.dll": "/b/client.dll"}, cfg.Target.PreferredPaths)
	assert.Equal(t, "/tmp/interfaces.hpp", cfg.Table.Path)
	assert.True(t, cfg.Guard.RequireExecutable)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Interval)
	assert.True(t, cfg.Watch.Revalidate)
	assert.Equal(t, 0.25, cfg.Wait.Jitter)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9310", cfg.Metrics.Addr)
}

func TestLoadFromEnv_EmptyLeavesValue(t *testing.T) {
	t.Setenv("CS2_DUMPER_PROCESS", "")

	cfg := Default()
	require.NoError(t, LoadFromEnv(cfg))
	assert.Equal(t, "cs2", cfg.Target.Process)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		env    string
		value  string
		errMsg string
	}{
		{env: "CS2_DUMPER_PID", value: "abc", errMsg: "invalid integer for PID"},
		{env: "CS2_DUMPER_REFRESH_INTERVAL", value: "soon", errMsg: "invalid duration for Interval"},
		{env: "CS2_DUMPER_GUARD_STRICT", value: "maybe", errMsg: "invalid boolean for Strict"},
		{env: "CS2_DUMPER_WAIT_JITTER", value: "lots", errMsg: "invalid float for Jitter"},
		{env: "CS2_DUMPER_PREFERRED_PATHS", value: "tier0.dll", errMsg: "invalid key=value pair"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			err := LoadFromEnv(Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromEnv_NonStruct(t *testing.T) {
	var n int
	assert.NoError(t, LoadFromEnv(&n))
	assert.NoError(t, LoadFromEnv((*Config)(nil)))
}

func TestSetFieldValue_Unsupported(t *testing.T) {
	type weird struct {
		Ints []int `env:"CS2_DUMPER_TEST_INTS"`
	}
	t.Setenv("CS2_DUMPER_TEST_INTS", "1,2")
	err := LoadFromEnv(&weird{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported slice type")
}
