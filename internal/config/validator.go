package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swatzat-oss/cs2-dumper/internal/guard"
	"github.com/swatzat-oss/cs2-dumper/internal/logging"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

var tableExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
	".hpp":  true,
	".h":    true,
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Version == "" {
		add("version", "version is required")
	} else if c.Version != SchemaVersion {
		add("version", "unsupported version %q (expected %q)", c.Version, SchemaVersion)
	}

	if c.Target.PID < 0 {
		add("target.pid", "pid must not be negative")
	}
	if c.Target.PID == 0 && strings.TrimSpace(c.Target.Process) == "" {
		add("target.process", "process name or pid is required")
	}
	for name, path := range c.Target.PreferredPaths {
		if strings.TrimSpace(path) == "" {
			add("target.preferred_paths."+name, "path must not be empty")
		}
	}

	if c.Table.Path != "" && !tableExtensions[strings.ToLower(filepath.Ext(c.Table.Path))] {
		add("table.path", "unsupported table format %q (use .yaml, .json or .hpp)", filepath.Ext(c.Table.Path))
	}

	for i, p := range c.Guard.Patterns {
		field := fmt.Sprintf("guard.patterns[%d]", i)
		if p.Module == "" || p.Interface == "" {
			add(field, "module and interface are required")
		}
		if _, err := guard.ParsePattern(p.Pattern); err != nil {
			add(field+".pattern", "%v", err)
		}
	}

	if c.Watch.Interval <= 0 {
		add("watch.interval", "interval must be positive")
	}

	if err := c.Wait.Retry().Validate(); err != nil {
		add("wait", "%v", err)
	}

	if c.Logging.Level != "" && logging.ParseLevel(c.Logging.Level).String() != strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// Expectations converts the configured patterns for the guard. Call after
// Validate.
func (g GuardConfig) Expectations() ([]guard.Expectation, error) {
	out := make([]guard.Expectation, 0, len(g.Patterns))
	for _, p := range g.Patterns {
		pattern, err := guard.ParsePattern(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern for %s!%s: %w", p.Module, p.Interface, err)
		}
		out = append(out, guard.Expectation{Module: p.Module, Interface: p.Interface, Pattern: pattern})
	}
	return out, nil
}
