// Package config loads project settings from rift.yaml or rift.cue.
//
// YAML files are decoded strictly over Default(). CUE files are unified with
// an embedded #Config schema that carries the same defaults. Either way the
// result goes through Validate, and command-line flags override it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/source"
)

// File names searched by Find, in order.
var FileNames = []string{"rift.yaml", "rift.yml", "rift.cue"}

// Config is the project configuration.
type Config struct {
	Name        string   `yaml:"name" json:"name"`
	Targets     []string `yaml:"targets" json:"targets"`
	OutDir      string   `yaml:"out_dir" json:"out_dir"`
	Parallelism int      `yaml:"parallelism" json:"parallelism"` // 0 means NumCPU
	Optimize    Optimize `yaml:"optimize" json:"optimize"`
	Cache       Cache    `yaml:"cache" json:"cache"`
	Log         Log      `yaml:"log" json:"log"`
}

// Optimize configures the optimizer. Passes always run in their fixed
// order; listing them only enables them.
type Optimize struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	Passes        []string `yaml:"passes" json:"passes"`
	MaxIterations int      `yaml:"max_iterations" json:"max_iterations"`
}

// Cache configures the artifact cache.
type Cache struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Name:    "rift",
		Targets: []string{"go"},
		OutDir:  "rift-out",
		Optimize: Optimize{
			Enabled:       true,
			Passes:        optimize.PassNames(),
			MaxIterations: optimize.DefaultMaxIterations,
		},
		Cache: Cache{Enabled: true, Path: filepath.Join(".rift", "cache.db")},
		Log:   Log{Level: "info", Format: "console"},
	}
}

// Workers returns the effective parallelism.
func (c *Config) Workers() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.NumCPU()
}

// TargetLanguages resolves Targets, accepting aliases.
func (c *Config) TargetLanguages() ([]source.Language, error) {
	langs := make([]source.Language, 0, len(c.Targets))
	for _, t := range c.Targets {
		lang, err := source.ParseLanguage(t)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(langs, lang) {
			langs = append(langs, lang)
		}
	}
	return langs, nil
}

// Find returns the first config file in dir, or "" when there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads a config file, choosing the decoder by extension, and
// validates it. Validation problems are joined into one error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("config %s: unsupported format (want .yaml, .yml or .cue)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config %s: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

// ParseYAML decodes data over Default. Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}
