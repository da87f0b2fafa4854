package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{level: "trace", visible: []string{"trace", "debug", "info"}},
		{level: "debug", visible: []string{"debug", "info"}, hidden: []string{"trace"}},
		{level: "info", visible: []string{"info", "warn"}, hidden: []string{"debug"}},
		{level: "WARN", visible: []string{"warn", "error"}, hidden: []string{"info"}},
		{level: "error", visible: []string{"error"}, hidden: []string{"warn"}},
		{level: "bogus", visible: []string{"info"}, hidden: []string{"debug"}},
		{level: "", visible: []string{"info"}, hidden: []string{"debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.level, Output: &buf})

			logger.Trace().Msg("trace message")
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Warn().Msg("warn message")
			logger.Error().Msg("error message")

			out := buf.String()
			for _, v := range tt.visible {
				assert.Contains(t, out, v+" message")
			}
			for _, h := range tt.hidden {
				assert.NotContains(t, out, h+" message")
			}
		})
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "resolver")

	logger.Info().Str("module", "client.dll").Msg("Resolved interface")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "resolver", line["component"])
	assert.Equal(t, "client.dll", line["module"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})

	logger.Info().Str("module", "client.dll").Msg("Module located")

	out := buf.String()
	assert.Contains(t, out, "Module located")
	assert.Contains(t, out, "client.dll")
	assert.NotContains(t, out, `"message"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" Debug "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}
