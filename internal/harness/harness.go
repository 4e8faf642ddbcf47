package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/source"
	"github.com/roach88/rift/internal/testutil"
)

// Options configures a Harness.
type Options struct {
	// Pipeline is the base pipeline configuration. Scenarios override
	// DisableOptimize and get the job ID scenario-<name>; the artifact cache
	// is always off so every scenario exercises the emitters.
	Pipeline fusion.Options

	// GoldenDir holds golden artifacts for scenarios with golden: true.
	GoldenDir string
	// Update rewrites golden files instead of comparing them.
	Update bool
}

// Harness runs scenarios through the fusion pipeline.
type Harness struct {
	opts Options
	log  *zap.Logger
}

// New builds a harness.
func New(opts Options) *Harness {
	log := opts.Pipeline.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Pipeline.Store = nil
	return &Harness{opts: opts, log: log}
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario string `json:"scenario"`
	// Pass is true when every expectation holds.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	// Updated lists golden files written in update mode.
	Updated []string `json:"updated,omitempty"`

	Fusion *fusion.Result `json:"-"`
	RunErr error          `json:"-"`
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}

// Job turns a scenario into a fusion job.
func (sc *Scenario) Job() (*fusion.Job, error) {
	units := make([]*source.Unit, 0, len(sc.Sources))
	for i, src := range sc.Sources {
		var lang source.Language
		if src.Lang != "" {
			l, err := source.ParseLanguage(src.Lang)
			if err != nil {
				return nil, fmt.Errorf("sources[%d]: %w", i, err)
			}
			lang = l
		}
		if src.Path != "" {
			u, err := source.ReadUnit(src.Path, lang, src.Module)
			if err != nil {
				return nil, fmt.Errorf("sources[%d]: %w", i, err)
			}
			units = append(units, u)
			continue
		}
		module := src.Module
		if module == "" {
			module = source.ModuleName(sc.Name)
		}
		label := fmt.Sprintf("%s#%d%s", sc.Name, i+1, lang.Ext())
		units = append(units, source.NewUnit(label, lang, module, []byte(src.Code)))
	}
	targets := make([]source.Language, 0, len(sc.Targets))
	for i, t := range sc.Targets {
		lang, err := source.ParseLanguage(t)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		targets = append(targets, lang)
	}
	return fusion.NewJob(sc.Name, units, targets), nil
}

// Run executes a scenario and evaluates its expectations. The error return
// is reserved for scenarios that cannot be run at all (unreadable sources,
// cancellation); pipeline failures are checked against expect.status.
func (h *Harness) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	job, err := sc.Job()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	opts := h.opts.Pipeline
	opts.IDs = testutil.NewFixedIDs("scenario-" + sc.Name)
	if sc.Optimize != nil {
		opts.DisableOptimize = !*sc.Optimize
	}
	res, runErr := fusion.New(opts).Run(ctx, job)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, runErr
	}

	result := &Result{Scenario: sc.Name, Pass: true, Fusion: res, RunErr: runErr}
	for _, err := range Evaluate(sc.Expect, res, runErr) {
		result.addError(err)
	}
	if sc.Golden && result.Pass && h.opts.GoldenDir != "" {
		updated, errs := CompareGolden(h.opts.GoldenDir, sc.Name, res.Artifacts, h.opts.Update)
		result.Updated = updated
		for _, err := range errs {
			result.addError(err)
		}
	}
	h.log.Debug("scenario finished",
		zap.String("scenario", sc.Name),
		zap.Bool("pass", result.Pass),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// RunAll runs scenarios one after another and stops only on cancellation.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, sc := range scenarios {
		r, err := h.Run(ctx, sc)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			r = &Result{Scenario: sc.Name}
			r.addError(err)
		}
		results = append(results, r)
	}
	return results, nil
}
