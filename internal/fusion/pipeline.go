package fusion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/rift/internal/adapter"
	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/emit"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/store"
	"github.com/roach88/rift/internal/unify"
)

// Stage names the last stage a run goes through.
type Stage int

const (
	StageParse Stage = iota
	StageUnify
	StageOptimize
	StageEmit
)

var stageNames = []string{"parsed", "unified", "optimized", "emitted"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage resolves a stage by name.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (want parsed, unified, optimized or emitted)", name)
}

// Store is the part of the artifact store the pipeline needs.
type Store interface {
	GetArtifact(ctx context.Context, key string) (store.Artifact, bool, error)
	PutArtifact(ctx context.Context, a store.Artifact) (bool, error)
	RecordRun(ctx context.Context, run store.Run) (store.Run, error)
}

// Options configures a Pipeline.
type Options struct {
	Adapters    *adapter.Registry // nil means adapter.DefaultRegistry
	Emitters    *emit.Registry    // nil means emit.DefaultRegistry
	Parallelism int               // zero means NumCPU

	// DisableOptimize skips the optimizer stage.
	DisableOptimize bool
	Passes          []optimize.Pass // nil means optimize.DefaultPasses
	MaxIterations   int

	// Store caches artifacts and records runs. Nil disables both.
	Store  Store
	IDs    IDGenerator // nil means UUIDv7Generator
	Logger *zap.Logger
}

// Pipeline runs fusion jobs. It holds no per-job state and may run several
// jobs concurrently.
type Pipeline struct {
	opts Options
	log  *zap.Logger
}

// New builds a pipeline.
func New(opts Options) *Pipeline {
	if opts.Adapters == nil {
		opts.Adapters = adapter.DefaultRegistry()
	}
	if opts.Emitters == nil {
		opts.Emitters = emit.DefaultRegistry()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{opts: opts, log: log}
}

// Result is the outcome of a run. Fields past the last stage reached are
// empty.
type Result struct {
	Job         *Job
	Stage       Stage // last stage completed
	Diags       diag.List
	Fragments   []*adapter.Fragment
	Program     *ir.Node
	Symbols     *unify.SymbolTable
	Fingerprint string
	Optimizer   *optimize.Stats
	Artifacts   []*emit.Artifact
	CacheHits   int
	Duration    time.Duration
}

// OK reports whether the run produced no error diagnostics.
func (r *Result) OK() bool { return !r.Diags.HasErrors() }

// Run takes job through every stage.
func (p *Pipeline) Run(ctx context.Context, job *Job) (*Result, error) {
	return p.RunTo(ctx, job, StageEmit)
}

// RunTo takes job through the stages up to and including last.
//
// Diagnostics (parse, unresolved, conflict and unsupported-construct errors)
// come back in Result.Diags with a nil error. The error return is reserved
// for cancellation and internal failures such as a NonConvergenceError or a
// store error. Only full runs are recorded in the run history.
func (p *Pipeline) RunTo(ctx context.Context, job *Job, last Stage) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = p.opts.IDs.Generate()
	}
	start := time.Now()
	log := p.log.With(zap.String("job", job.Name), zap.String("job_id", job.ID))
	res := &Result{Job: job, Stage: StageParse}

	err := p.run(ctx, log, job, last, res)
	res.Duration = time.Since(start)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("fusion cancelled", zap.Stringer("stage", res.Stage))
		return nil, err
	}
	if last == StageEmit {
		if recErr := p.record(ctx, res, err); recErr != nil {
			return res, errors.Join(err, recErr)
		}
	}
	if err != nil {
		log.Error("fusion failed", zap.Error(err))
		return res, err
	}
	log.Info("fusion finished",
		zap.Stringer("stage", res.Stage),
		zap.Int("units", len(job.Units)),
		zap.Int("errors", len(res.Diags.Errors())),
		zap.Int("warnings", len(res.Diags.Warnings())),
		zap.Int("artifacts", len(res.Artifacts)),
		zap.Int("cache_hits", res.CacheHits),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, job *Job, last Stage, res *Result) error {
	stageStart := time.Now()
	frags, diags, err := p.opts.Adapters.ParseAll(ctx, job.Units, adapter.Options{
		Parallelism: p.opts.Parallelism,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	res.Diags = diags
	res.Fragments = frags
	log.Debug("stage done", zap.String("stage", "parse"), zap.Int("units", len(job.Units)), zap.Duration("took", time.Since(stageStart)))
	if diags.HasErrors() || last == StageParse {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stageStart = time.Now()
	unified := unify.Unify(frags, unify.Options{Logger: log})
	res.Fragments = nil // emptied by unification
	res.Diags.Add(unified.Diags...)
	res.Program = unified.Program
	res.Program.Name = job.Name
	res.Symbols = unified.Symbols
	res.Stage = StageUnify
	log.Debug("stage done", zap.String("stage", "unify"), zap.Int("symbols", unified.Symbols.Len()), zap.Duration("took", time.Since(stageStart)))
	if res.Diags.HasErrors() {
		return nil
	}
	if err := ir.CheckOwnership(res.Program); err != nil {
		return fmt.Errorf("after unification: %w", err)
	}
	if last == StageUnify {
		return p.fingerprint(res)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !p.opts.DisableOptimize || job.Optimize {
		passes := p.opts.Passes
		if len(passes) == 0 {
			passes = nil
		}
		stats, err := optimize.Optimize(ctx, res.Program, optimize.Options{
			Passes:        passes,
			MaxIterations: p.opts.MaxIterations,
			Logger:        log,
		})
		res.Optimizer = stats
		if err != nil {
			return err
		}
		if err := ir.CheckOwnership(res.Program); err != nil {
			return fmt.Errorf("after optimization: %w", err)
		}
	}
	res.Stage = StageOptimize
	if err := p.fingerprint(res); err != nil {
		return err
	}
	if last == StageOptimize || len(job.Targets) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var hits atomic.Int64
	artifacts, err := p.opts.Emitters.EmitAll(ctx, res.Program, job.Targets, emit.Options{
		Parallelism: p.opts.Parallelism,
		Logger:      log,
		Emit:        p.cachedEmit(res.Fingerprint, &hits),
	})
	res.CacheHits = int(hits.Load())
	if err != nil {
		if d, ok := diag.AsDiagnostic(err); ok && d.Code == diag.CodeUnsupported {
			res.Diags.Add(d)
			return nil
		}
		return err
	}
	res.Artifacts = artifacts
	res.Stage = StageEmit
	return nil
}

func (p *Pipeline) fingerprint(res *Result) error {
	fp, err := ir.Fingerprint(res.Program)
	if err != nil {
		return fmt.Errorf("fingerprint program: %w", err)
	}
	res.Fingerprint = fp
	return nil
}

// cachedEmit looks each target up in the store before emitting it, and
// stores what it emits. Without a store it emits directly.
func (p *Pipeline) cachedEmit(fingerprint string, hits *atomic.Int64) func(context.Context, emit.Emitter, *ir.Node) (*emit.Artifact, error) {
	return func(ctx context.Context, e emit.Emitter, prog *ir.Node) (*emit.Artifact, error) {
		if p.opts.Store == nil {
			return e.Emit(prog)
		}
		target := e.Target()
		key := ir.ArtifactKey(fingerprint, string(target), emit.Version)
		cached, ok, err := p.opts.Store.GetArtifact(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("artifact cache: %w", err)
		}
		if ok {
			hits.Add(1)
			return &emit.Artifact{Target: target, FileName: cached.FileName, Text: cached.Content, Hash: cached.ContentHash}, nil
		}
		a, err := e.Emit(prog)
		if err != nil {
			return nil, err
		}
		_, err = p.opts.Store.PutArtifact(ctx, store.Artifact{
			Key:         key,
			Target:      string(target),
			ProgramHash: fingerprint,
			FileName:    a.FileName,
			Content:     a.Text,
			ContentHash: a.Hash,
		})
		if err != nil {
			return nil, fmt.Errorf("artifact cache: %w", err)
		}
		return a, nil
	}
}

// record appends the run to the history. Cancelled runs are never
// recorded.
func (p *Pipeline) record(ctx context.Context, res *Result, runErr error) error {
	if p.opts.Store == nil {
		return nil
	}
	status := store.RunOK
	switch {
	case runErr != nil:
		status = store.RunFailed
	case !res.OK():
		status = store.RunError
	}
	targets := make([]string, len(res.Job.Targets))
	for i, t := range res.Job.Targets {
		targets[i] = string(t)
	}
	_, err := p.opts.Store.RecordRun(context.WithoutCancel(ctx), store.Run{
		ID:          res.Job.ID,
		Name:        res.Job.Name,
		Status:      status,
		Units:       len(res.Job.Units),
		Targets:     targets,
		Errors:      len(res.Diags.Errors()),
		Warnings:    len(res.Diags.Warnings()),
		ProgramHash: res.Fingerprint,
		CacheHits:   res.CacheHits,
		DurationMS:  res.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
