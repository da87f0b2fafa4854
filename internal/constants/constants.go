// Package constants defines shared names and defaults.
package constants

const (
	// AppName is the binary and directory name.
	AppName = "cs2-dumper"

	// DefaultDir is the per-user directory under $HOME.
	DefaultDir = "." + AppName

	ConfigFile = "config.yaml"

	// EnvConfigDir overrides the directory holding ConfigFile.
	EnvConfigDir = "CS2_DUMPER_CONFIG"

	// DefaultProcessName is the game process the modules live in.
	DefaultProcessName = "cs2"

	// MetricsPath is where watch serves Prometheus metrics.
	MetricsPath = "/metrics"
)
