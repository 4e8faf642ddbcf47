package fusion

import (
	"fmt"
	"slices"

	"github.com/roach88/rift/internal/manifest"
	"github.com/roach88/rift/internal/source"
)

// Job is one fusion request.
type Job struct {
	ID      string // assigned by the pipeline when empty
	Name    string
	Units   []*source.Unit
	Targets []source.Language
	// Optimize runs the optimizer even when the pipeline disables it.
	Optimize bool
}

// NewJob builds a job. Duplicate targets are dropped.
func NewJob(name string, units []*source.Unit, targets []source.Language) *Job {
	var ts []source.Language
	for _, t := range targets {
		if !slices.Contains(ts, t) {
			ts = append(ts, t)
		}
	}
	return &Job{Name: name, Units: units, Targets: ts}
}

// JobsFromManifest builds one job per run the manifest plans for name.
// Targets picked by the manifest come first, followed by extra.
func JobsFromManifest(m *manifest.Manifest, name string, extra []source.Language) ([]*Job, error) {
	runs, err := m.Plan(name)
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(runs))
	for _, r := range runs {
		units, err := r.Rift.Units(m.Path)
		if err != nil {
			return nil, err
		}
		job := NewJob(r.Rift.Name, units, append(slices.Clone(r.Targets), extra...))
		job.Optimize = r.Optimize
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Validate rejects jobs that cannot run.
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job: empty name")
	}
	if len(j.Units) == 0 {
		return fmt.Errorf("job %s: no source units", j.Name)
	}
	return nil
}
