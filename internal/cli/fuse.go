package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/source"
)

// FuseOptions holds flags for the fuse command.
type FuseOptions struct {
	*RootOptions
	Targets    []string // --target, repeatable or comma separated
	OutDir     string
	Name       string
	NoOptimize bool
	NoCache    bool
}

// ArtifactOutput describes one written artifact.
type ArtifactOutput struct {
	Target source.Language `json:"target"`
	Path   string          `json:"path"`
	Hash   string          `json:"hash"`
}

// FuseResult is the payload of a fuse run.
type FuseResult struct {
	Job         string           `json:"job"`
	ID          string           `json:"id,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Artifacts   []ArtifactOutput `json:"artifacts"`
	CacheHits   int              `json:"cache_hits"`
	Optimizer   *optimize.Stats  `json:"optimizer,omitempty"`
	Diagnostics diag.List        `json:"diagnostics"`
}

// NewFuseCommand creates the fuse command.
func NewFuseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FuseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fuse <inputs...>",
		Short: "Fuse sources and emit them for every target",
		Long: `Run the full pipeline: adapt every input, unify the fragments into one
program, optimize it and emit one file per target into the output directory.

An input is path[:lang[:module]] or a single .rift manifest. The language
is detected from the extension when omitted; the module defaults to the
file name. A manifest runs its top-level calls in order, or the rift or
task picked with --name.

Examples:
  rift fuse geometry.py main.go -t javascript -t rust
  rift fuse util.js:js:helpers main.go --out build
  rift fuse shapes.rift --name shapes --no-cache
  rift fuse shapes.rift --name native    # run the calls of @task native`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuse(cmd.Context(), opts, args, opts.formatter(cmd))
		},
	}

	addFuseFlags(cmd, opts)
	return cmd
}

func addFuseFlags(cmd *cobra.Command, opts *FuseOptions) {
	cmd.Flags().StringSliceVarP(&opts.Targets, "target", "t", nil, "target language (repeatable; default from config)")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "job name, or the rift to run from a manifest")
	cmd.Flags().BoolVar(&opts.NoOptimize, "no-optimize", false, "skip the optimizer")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the artifact cache")
}

// runFuse runs every job the inputs describe and writes their artifacts. A
// manifest whose calls schedule several runs fuses them in order and stops
// at the first failure. Diagnostic errors map to ExitFailure; everything else
// that stops the run maps to ExitCommandError.
func runFuse(ctx context.Context, opts *FuseOptions, inputs []string, f *OutputFormatter) error {
	targets, err := ParseTargets(opts.Targets)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid --target", err)
	}
	jobs, loadDiags, err := LoadJobs(JobRequest{Inputs: inputs, Name: opts.Name, Targets: targets}, opts.config())
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInput, "load inputs", err)
	}
	if loadDiags.HasErrors() {
		f.Diagnostics(loadDiags)
		return diagnosticsFailure(f, FuseResult{Diagnostics: loadDiags}, loadDiags)
	}

	popts, err := opts.pipelineOptions(opts.NoOptimize)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid optimizer settings", err)
	}
	if opts.config().Cache.Enabled && !opts.NoCache {
		st, err := opts.openStore()
		if err != nil {
			return failWith(f, ExitCommandError, ErrCodeStore, "open artifact cache", err)
		}
		defer st.Close()
		popts.Store = st
	}

	pipe := fusion.New(popts)
	results := make([]FuseResult, 0, len(jobs))
	for i, job := range jobs {
		var pending diag.List
		if i == 0 {
			pending = loadDiags
		}
		result, err := fuseJob(ctx, opts, pipe, job, pending, f)
		if err != nil {
			return err
		}
		results = append(results, result)
	}
	if f.Format == "json" {
		if len(results) == 1 {
			return f.Success(results[0])
		}
		return f.Success(results)
	}
	return nil
}

// fuseJob runs one job and writes its artifacts.
func fuseJob(ctx context.Context, opts *FuseOptions, pipe *fusion.Pipeline, job *fusion.Job, loadDiags diag.List, f *OutputFormatter) (FuseResult, error) {
	res, err := pipe.Run(ctx, job)
	if err != nil {
		code := ErrCodeInternal
		if d, ok := diag.AsDiagnostic(err); ok {
			code = d.Code
		}
		if errors.Is(err, context.Canceled) {
			return FuseResult{}, WrapExitError(ExitCommandError, "fusion cancelled", err)
		}
		return FuseResult{}, failWith(f, ExitCommandError, code, "fusion failed", err)
	}

	diags := append(loadDiags, res.Diags...)
	result := FuseResult{
		Job:         job.Name,
		ID:          job.ID,
		Fingerprint: res.Fingerprint,
		Artifacts:   []ArtifactOutput{},
		CacheHits:   res.CacheHits,
		Optimizer:   res.Optimizer,
		Diagnostics: diags,
	}
	f.Diagnostics(diags)
	if !res.OK() {
		return result, diagnosticsFailure(f, result, diags)
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = opts.config().OutDir
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return result, failWith(f, ExitCommandError, ErrCodeWrite, "create output directory", err)
	}
	for _, a := range res.Artifacts {
		path := filepath.Join(outDir, a.FileName)
		if err := os.WriteFile(path, []byte(a.Text), 0644); err != nil {
			return result, failWith(f, ExitCommandError, ErrCodeWrite, "write artifact", err)
		}
		opts.logger().Debug("artifact written", zap.String("path", path), zap.Stringer("target", a.Target))
		result.Artifacts = append(result.Artifacts, ArtifactOutput{Target: a.Target, Path: path, Hash: a.Hash})
	}

	if f.Format == "json" {
		return result, nil
	}
	for _, a := range result.Artifacts {
		fmt.Fprintf(f.Writer, "✓ %s (%s)\n", a.Path, a.Target)
	}
	fmt.Fprintf(f.Writer, "fused %d unit(s) into %d artifact(s), %d from cache\n",
		len(job.Units), len(result.Artifacts), result.CacheHits)
	return result, nil
}
