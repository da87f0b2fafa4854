package config

import (
	"time"

	"github.com/swatzat-oss/cs2-dumper/internal/constants"
	"github.com/swatzat-oss/cs2-dumper/internal/retry"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Config represents ~/.cs2-dumper/config.yaml.
type Config struct {
	Version string        `yaml:"version"`
	Target  TargetConfig  `yaml:"target"`
	Table   TableConfig   `yaml:"table"`
	Guard   GuardConfig   `yaml:"guard"`
	Watch   WatchConfig   `yaml:"watch"`
	Wait    WaitConfig    `yaml:"wait"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TargetConfig selects the process whose modules are resolved.
type TargetConfig struct {
	// Process is matched case-insensitively against process names, with or
	// without the .exe suffix.
	Process string `yaml:"process" env:"CS2_DUMPER_PROCESS"`
	// PID takes precedence over Process when non-zero.
	PID int `yaml:"pid,omitempty" env:"CS2_DUMPER_PID"`
	// PreferredPaths picks one image when a module name is mapped more than
	// once: module name -> full path.
	PreferredPaths map[string]string `yaml:"preferred_paths,omitempty" env:"CS2_DUMPER_PREFERRED_PATHS"`
}

// TableConfig selects the offset table.
type TableConfig struct {
	// Path to a .yaml, .json or .hpp table. Empty uses the embedded table.
	Path string `yaml:"path,omitempty" env:"CS2_DUMPER_TABLE"`
}

// GuardConfig configures the plausibility checks run on fresh resolutions.
type GuardConfig struct {
	// Probe enables the memory protection and pattern checks. Without it
	// only the image bounds are checked.
	Probe bool `yaml:"probe" env:"CS2_DUMPER_GUARD_PROBE"`
	// Strict fails lookups the guard rejects. When false the address is
	// returned together with a warning.
	Strict            bool            `yaml:"strict" env:"CS2_DUMPER_GUARD_STRICT"`
	RequireExecutable bool            `yaml:"require_executable" env:"CS2_DUMPER_GUARD_REQUIRE_EXECUTABLE"`
	Patterns          []PatternConfig `yaml:"patterns,omitempty"`
}

// PatternConfig expects a byte signature at one interface.
type PatternConfig struct {
	Module    string `yaml:"module"`
	Interface string `yaml:"interface"`
	// Pattern is IDA style: "48 8B 05 ?? ?? ?? ??".
	Pattern string `yaml:"pattern"`
}

// WatchConfig configures module reload polling.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval" env:"CS2_DUMPER_REFRESH_INTERVAL"`
	// Revalidate re-locates a module on every cache hit, so unloads are seen
	// even when nothing polls.
	Revalidate bool `yaml:"revalidate,omitempty" env:"CS2_DUMPER_REVALIDATE"`
}

// WaitConfig is the backoff used while waiting for modules to load.
type WaitConfig struct {
	MaxRetries     int           `yaml:"max_retries" env:"CS2_DUMPER_WAIT_MAX_RETRIES"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"CS2_DUMPER_WAIT_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"CS2_DUMPER_WAIT_MAX_BACKOFF"`
	Jitter         float64       `yaml:"jitter" env:"CS2_DUMPER_WAIT_JITTER"`
}

// Retry converts the wait settings to a retry schedule.
func (w WaitConfig) Retry() retry.Config {
	return retry.Config{
		MaxRetries:     w.MaxRetries,
		InitialBackoff: w.InitialBackoff,
		MaxBackoff:     w.MaxBackoff,
		Jitter:         w.Jitter,
	}
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CS2_DUMPER_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"CS2_DUMPER_LOG_PRETTY"`
}

// MetricsConfig configures the Prometheus endpoint served by watch.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9310". Empty disables it.
	Addr string `yaml:"addr,omitempty" env:"CS2_DUMPER_METRICS_ADDR"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	wait := retry.DefaultConfig()
	return &Config{
		Version: SchemaVersion,
		Target: TargetConfig{
			Process: constants.DefaultProcessName,
		},
		Guard: GuardConfig{
			Probe:  true,
			Strict: true,
		},
		Watch: WatchConfig{
			Interval: 2 * time.Second,
		},
		Wait: WaitConfig{
			MaxRetries:     wait.MaxRetries,
			InitialBackoff: wait.InitialBackoff,
			MaxBackoff:     wait.MaxBackoff,
			Jitter:         wait.Jitter,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
