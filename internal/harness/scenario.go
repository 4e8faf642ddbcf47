package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

// Scenario is one fusion scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the job name, so
	// it names the emitted files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sources lists the fragments to fuse, in order.
	Sources []SourceSpec `yaml:"sources"`

	// Targets lists the languages to emit.
	Targets []string `yaml:"targets"`

	// Optimize toggles the optimizer. Unset means enabled.
	Optimize *bool `yaml:"optimize,omitempty"`

	// Golden compares every artifact with its golden file.
	Golden bool `yaml:"golden,omitempty"`

	Expect Expect `yaml:"expect"`

	// Path is the scenario file, when loaded from disk.
	Path string `yaml:"-"`
}

// SourceSpec is one fragment: a file or inline code.
type SourceSpec struct {
	Path   string `yaml:"path,omitempty"`
	Code   string `yaml:"code,omitempty"`
	Lang   string `yaml:"lang,omitempty"`
	Module string `yaml:"module,omitempty"`
}

// Expect describes the required outcome.
type Expect struct {
	Status      string              `yaml:"status"`
	Diagnostics []DiagnosticExpect  `yaml:"diagnostics,omitempty"`
	Contains    map[string][]string `yaml:"contains,omitempty"`
	Absent      map[string][]string `yaml:"absent,omitempty"`
	Error       string              `yaml:"error,omitempty"` // substring of the internal error
}

// DiagnosticExpect matches diagnostics by code, and optionally severity,
// file and message substring. Count zero means at least one.
type DiagnosticExpect struct {
	Code     string `yaml:"code"`
	Severity string `yaml:"severity,omitempty"`
	File     string `yaml:"file,omitempty"`
	Contains string `yaml:"contains,omitempty"`
	Count    int    `yaml:"count,omitempty"`
}

// Expected statuses.
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusFailed = "failed"
)

var severities = []string{diag.Error.String(), diag.Warning.String(), diag.Info.String()}

// LoadScenario reads and parses a scenario YAML file. Source paths are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	base := filepath.Dir(path)
	for i, src := range sc.Sources {
		if src.Path != "" && !filepath.IsAbs(src.Path) {
			sc.Sources[i].Path = filepath.Join(base, src.Path)
		}
	}
	for i, src := range sc.Sources {
		if src.Path == "" {
			continue
		}
		if _, err := os.Stat(src.Path); err != nil {
			return nil, fmt.Errorf("%s: sources[%d]: %w", path, i, err)
		}
	}
	return sc, nil
}

// ParseScenario decodes scenario YAML with strict field validation
// (catches typos like "target:" vs "targets:") and validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. filter, when non-empty, keeps scenarios whose name contains it.
func LoadDir(dir, filter string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var out []*Scenario
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		sc, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if filter != "" && !strings.Contains(sc.Name, filter) {
			continue
		}
		out = append(out, sc)
	}
	names := make(map[string]string, len(out))
	for _, sc := range out {
		if prev, ok := names[sc.Name]; ok {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", sc.Name, prev, sc.Path)
		}
		names[sc.Name] = sc.Path
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}
	for i, src := range s.Sources {
		if err := validateSource(i, src); err != nil {
			return err
		}
	}
	for i, t := range s.Targets {
		if _, err := source.ParseLanguage(t); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}
	return validateExpect(&s.Expect, s.Targets)
}

func validateSource(i int, src SourceSpec) error {
	switch {
	case src.Path == "" && src.Code == "":
		return fmt.Errorf("sources[%d]: path or code is required", i)
	case src.Path != "" && src.Code != "":
		return fmt.Errorf("sources[%d]: path and code are mutually exclusive", i)
	case src.Code != "" && src.Lang == "":
		return fmt.Errorf("sources[%d]: lang is required for inline code", i)
	}
	if src.Lang != "" {
		if _, err := source.ParseLanguage(src.Lang); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

func validateExpect(e *Expect, targets []string) error {
	switch e.Status {
	case StatusOK, StatusError, StatusFailed:
	case "":
		return fmt.Errorf("expect.status is required")
	default:
		return fmt.Errorf("expect.status: unknown status %q (want ok, error or failed)", e.Status)
	}
	for i, d := range e.Diagnostics {
		if d.Code == "" {
			return fmt.Errorf("expect.diagnostics[%d]: code is required", i)
		}
		if d.Severity != "" && !slices.Contains(severities, d.Severity) {
			return fmt.Errorf("expect.diagnostics[%d]: unknown severity %q", i, d.Severity)
		}
		if d.Count < 0 {
			return fmt.Errorf("expect.diagnostics[%d]: count must be non-negative", i)
		}
	}
	for _, m := range []map[string][]string{e.Contains, e.Absent} {
		for t := range m {
			lang, err := source.ParseLanguage(t)
			if err != nil {
				return fmt.Errorf("expect: %w", err)
			}
			if !slices.ContainsFunc(targets, func(s string) bool {
				l, _ := source.ParseLanguage(s)
				return l == lang
			}) {
				return fmt.Errorf("expect: %s is not a scenario target", t)
			}
		}
	}
	if e.Error != "" && e.Status != StatusFailed {
		return fmt.Errorf("expect.error requires status failed")
	}
	return nil
}
