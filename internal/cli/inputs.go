package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/rift/internal/config"
	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/manifest"
	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/source"
	"github.com/roach88/rift/internal/store"
)

// JobRequest describes the job a command builds from its arguments.
type JobRequest struct {
	Inputs  []string
	Name    string            // job name, or the rift to pick from a manifest
	Targets []source.Language // from --target; empty means the manifest's or config's
}

// isManifest reports whether an input argument names a .rift manifest.
func isManifest(arg string) bool {
	return strings.EqualFold(filepath.Ext(arg), manifest.Ext)
}

// LoadJob builds the single fusion job the inputs describe. A manifest whose
// calls schedule several runs is rejected.
func LoadJob(req JobRequest, cfg *config.Config) (*fusion.Job, diag.List, error) {
	jobs, diags, err := LoadJobs(req, cfg)
	if err != nil || diags.HasErrors() {
		return nil, diags, err
	}
	if len(jobs) != 1 {
		return nil, diags, fmt.Errorf("the manifest schedules %d runs; pick one rift or task with --name, or use fuse", len(jobs))
	}
	return jobs[0], diags, nil
}

// LoadJobs builds fusion jobs from command inputs. Inputs are either one
// .rift manifest or source files given as path[:lang[:module]]. A manifest
// yields one job per planned run. Manifest syntax errors come back as
// diagnostics; err covers unreadable inputs.
func LoadJobs(req JobRequest, cfg *config.Config) ([]*fusion.Job, diag.List, error) {
	if len(req.Inputs) == 0 {
		return nil, nil, fmt.Errorf("no inputs")
	}
	defaults, err := cfg.TargetLanguages()
	if err != nil {
		return nil, nil, err
	}

	manifests := 0
	for _, in := range req.Inputs {
		if isManifest(in) {
			manifests++
		}
	}
	switch {
	case manifests > 1 || (manifests == 1 && len(req.Inputs) > 1):
		return nil, nil, fmt.Errorf("a .rift manifest must be the only input")
	case manifests == 1:
		return loadManifestJobs(req, defaults)
	}

	units := make([]*source.Unit, 0, len(req.Inputs))
	for _, arg := range req.Inputs {
		in, err := source.ParseInput(arg)
		if err != nil {
			return nil, nil, err
		}
		u, err := in.Read()
		if err != nil {
			return nil, nil, err
		}
		units = append(units, u)
	}
	name := req.Name
	if name == "" {
		name = cfg.Name
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = defaults
	}
	return []*fusion.Job{fusion.NewJob(name, units, targets)}, nil, nil
}

func loadManifestJobs(req JobRequest, defaults []source.Language) ([]*fusion.Job, diag.List, error) {
	m, diags, err := manifest.Load(req.Inputs[0])
	if err != nil {
		return nil, nil, err
	}
	if diags.HasErrors() {
		return nil, diags, nil
	}
	jobs, err := fusion.JobsFromManifest(m, req.Name, req.Targets)
	if err != nil {
		return nil, diags, err
	}
	for _, job := range jobs {
		if len(job.Targets) == 0 {
			job.Targets = defaults
		}
	}
	return jobs, diags, nil
}

// ParseTargets resolves --target values, accepting aliases.
func ParseTargets(values []string) ([]source.Language, error) {
	out := make([]source.Language, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lang, err := source.ParseLanguage(part)
			if err != nil {
				return nil, err
			}
			out = append(out, lang)
		}
	}
	return out, nil
}

// pipelineOptions maps the configuration onto pipeline options.
func (o *RootOptions) pipelineOptions(noOptimize bool) (fusion.Options, error) {
	cfg := o.config()
	passes, err := optimize.PassesByName(cfg.Optimize.Passes)
	if err != nil {
		return fusion.Options{}, err
	}
	return fusion.Options{
		Parallelism:     cfg.Parallelism,
		DisableOptimize: noOptimize || !cfg.Optimize.Enabled || len(passes) == 0,
		Passes:          passes,
		MaxIterations:   cfg.Optimize.MaxIterations,
		Logger:          o.logger(),
	}, nil
}

// openStore opens the artifact cache named by the configuration, creating
// its directory.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.config().Cache.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	return store.Open(path)
}
