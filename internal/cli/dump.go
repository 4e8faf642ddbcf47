package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/ir"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Name      string
	Stage     string // parsed, unified or optimized
	As        string // tree or json
	Positions bool
}

// DumpTree is one dumped tree: a fragment, or the whole program.
type DumpTree struct {
	Source string `json:"source"`
	Tree   any    `json:"tree"`
}

// DumpResult is the payload of a dump run.
type DumpResult struct {
	Stage       string     `json:"stage"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Trees       []DumpTree `json:"trees"`
	Diagnostics diag.List  `json:"diagnostics"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <inputs...>",
		Short: "Print the IR after a pipeline stage",
		Long: `Print the IR as it stands after the given stage.

  parsed     one tree per source fragment
  unified    the merged program with resolved references
  optimized  the program after the optimizer passes

--as tree prints a readable dump; --as json prints canonical JSON.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), opts, args, opts.formatter(cmd))
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "job name, or the rift to dump from a manifest")
	cmd.Flags().StringVar(&opts.Stage, "stage", "optimized", "stage to stop after (parsed|unified|optimized)")
	cmd.Flags().StringVar(&opts.As, "as", "tree", "rendering (tree|json)")
	cmd.Flags().BoolVar(&opts.Positions, "positions", false, "include source positions in tree output")
	return cmd
}

func runDump(ctx context.Context, opts *DumpOptions, inputs []string, f *OutputFormatter) error {
	stage, err := fusion.ParseStage(opts.Stage)
	if err != nil || stage == fusion.StageEmit {
		return failWith(f, ExitCommandError, ErrCodeConfig, fmt.Sprintf("invalid --stage %q: want parsed, unified or optimized", opts.Stage), nil)
	}
	if opts.As != "tree" && opts.As != "json" {
		return failWith(f, ExitCommandError, ErrCodeConfig, fmt.Sprintf("invalid --as %q: want tree or json", opts.As), nil)
	}

	job, loadDiags, err := LoadJob(JobRequest{Inputs: inputs, Name: opts.Name}, opts.config())
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInput, "load inputs", err)
	}
	if loadDiags.HasErrors() {
		f.Diagnostics(loadDiags)
		return diagnosticsFailure(f, DumpResult{Stage: opts.Stage, Diagnostics: loadDiags}, loadDiags)
	}
	popts, err := opts.pipelineOptions(false)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid optimizer settings", err)
	}

	res, err := fusion.New(popts).RunTo(ctx, job, stage)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInternal, "dump failed", err)
	}
	result := DumpResult{
		Stage:       stage.String(),
		Fingerprint: res.Fingerprint,
		Trees:       []DumpTree{},
		Diagnostics: append(loadDiags, res.Diags...),
	}
	f.Diagnostics(result.Diagnostics)
	if !res.OK() {
		return diagnosticsFailure(f, result, result.Diagnostics)
	}

	if stage == fusion.StageParse {
		for _, frag := range res.Fragments {
			tree, err := opts.render(frag.Root)
			if err != nil {
				return failWith(f, ExitCommandError, ErrCodeInternal, "render tree", err)
			}
			result.Trees = append(result.Trees, DumpTree{Source: frag.Unit.Path(), Tree: tree})
		}
	} else {
		tree, err := opts.render(res.Program)
		if err != nil {
			return failWith(f, ExitCommandError, ErrCodeInternal, "render tree", err)
		}
		result.Trees = append(result.Trees, DumpTree{Source: job.Name, Tree: tree})
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	for _, t := range result.Trees {
		fmt.Fprintf(f.Writer, "// %s (%s)\n", t.Source, result.Stage)
		switch tree := t.Tree.(type) {
		case json.RawMessage:
			fmt.Fprintf(f.Writer, "%s\n", tree)
		default:
			fmt.Fprintln(f.Writer, tree)
		}
	}
	return nil
}

// render returns a litter dump string or a canonical JSON document.
func (o *DumpOptions) render(n *ir.Node) (any, error) {
	if o.As == "json" {
		data, err := ir.MarshalNode(n)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	}
	if o.Positions {
		return ir.DumpWithPositions(n), nil
	}
	return ir.Dump(n), nil
}
