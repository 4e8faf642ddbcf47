package config

import (
	"fmt"
	"slices"

	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/source"
)

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
)

// Validate returns every problem found (does not fail-fast).
func (c *Config) Validate() []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Name == "" {
		add("name", "must not be empty")
	}
	if len(c.Targets) == 0 {
		add("targets", "at least one target is required")
	}
	for i, t := range c.Targets {
		if _, err := source.ParseLanguage(t); err != nil {
			add(fmt.Sprintf("targets[%d]", i), "%v", err)
		}
	}
	if c.Parallelism < 0 {
		add("parallelism", "must not be negative, got %d", c.Parallelism)
	}
	for i, p := range c.Optimize.Passes {
		if !slices.Contains(optimize.PassNames(), p) {
			add(fmt.Sprintf("optimize.passes[%d]", i), "unknown pass %q (want one of %v)", p, optimize.PassNames())
		}
	}
	if c.Optimize.MaxIterations <= 0 {
		add("optimize.max_iterations", "must be positive, got %d", c.Optimize.MaxIterations)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		add("cache.path", "required when the cache is enabled")
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		add("log.level", "unknown level %q (want one of %v)", c.Log.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		add("log.format", "unknown format %q (want one of %v)", c.Log.Format, logFormats)
	}
	return errs
}
