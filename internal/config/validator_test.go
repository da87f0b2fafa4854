package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "missing version",
			mutate: func(c *Config) { c.Version = "" },
			errMsg: "version is required",
		},
		{
			name:   "future version",
			mutate: func(c *Config) { c.Version = "2" },
			errMsg: "unsupported version",
		},
		{
			name:   "no target",
			mutate: func(c *Config) { c.Target.Process = " " },
			errMsg: "process name or pid is required",
		},
		{
			name: "pid without name",
			mutate: func(c *Config) {
				c.Target.Process = ""
				c.Target.PID = 4242
			},
		},
		{
			name:   "negative pid",
			mutate: func(c *Config) { c.Target.PID = -1 },
			errMsg: "pid must not be negative",
		},
		{
			name:   "empty preferred path",
			mutate: func(c *Config) { c.Target.PreferredPaths = map[string]string{"tier0.dll": ""} },
			errMsg: "target.preferred_paths.tier0.dll",
		},
		{
			name:   "unknown table format",
			mutate: func(c *Config) { c.Table.Path = "/tmp/interfaces.rs" },
			errMsg: "unsupported table format",
		},
		{
			name:   "header table",
			mutate: func(c *Config) { c.Table.Path = "/tmp/interfaces.HPP" },
		},
		{
			name: "bad pattern",
			mutate: func(c *Config) {
				c.Guard.Patterns = []PatternConfig{{Module: "client.dll", Interface: "Source2Client002", Pattern: "48 XZ"}}
			},
			errMsg: "guard.patterns[0].pattern",
		},
		{
			name: "pattern without interface",
			mutate: func(c *Config) {
				c.Guard.Patterns = []PatternConfig{{Module: "client.dll", Pattern: "48"}}
			},
			errMsg: "module and interface are required",
		},
		{
			name:   "zero watch interval",
			mutate: func(c *Config) { c.Watch.Interval = 0 },
			errMsg: "interval must be positive",
		},
		{
			name:   "bad wait",
			mutate: func(c *Config) { c.Wait.MaxRetries = 0 },
			errMsg: "max_retries must be positive",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			errMsg: "unknown level",
		},
		{
			name:   "upper case log level",
			mutate: func(c *Config) { c.Logging.Level = "DEBUG" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Version = ""
	cfg.Watch.Interval = -time.Second

	err := cfg.Validate()
	require.Error(t, err)

	var multi *MultiValidationError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)
	assert.Contains(t, err.Error(), "validation failed with 2 errors")
}

func TestGuardConfig_Expectations(t *testing.T) {
	g := GuardConfig{Patterns: []PatternConfig{
		{Module: "client.dll", Interface: "Source2Client002", Pattern: "48 8B 05 ?? ?? ?? ??"},
	}}

	exps, err := g.Expectations()
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, 7, exps[0].Pattern.Len())
	assert.Equal(t, "Source2Client002", exps[0].Interface)

	g.Patterns[0].Pattern = ""
	_, err = g.Expectations()
	assert.Error(t, err)
}

func TestMultiValidationError(t *testing.T) {
	assert.Equal(t, "no validation errors", (&MultiValidationError{}).Error())
	assert.Equal(t, "a: b", (&MultiValidationError{Errors: []ValidationError{{Field: "a", Message: "b"}}}).Error())
}
