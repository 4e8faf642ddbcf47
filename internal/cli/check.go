package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/unify"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Name string
}

// CheckResult is the payload of a check run.
type CheckResult struct {
	Job         string          `json:"job"`
	Units       int             `json:"units"`
	Symbols     []*unify.Symbol `json:"symbols"`
	Diagnostics diag.List       `json:"diagnostics"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <inputs...>",
		Short: "Adapt and unify sources without emitting",
		Long: `Run the source adapters and the unification layer, then print every
diagnostic and the resulting symbol table. Nothing is written.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, args, opts.formatter(cmd))
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "job name, or the rift to check from a manifest")
	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, inputs []string, f *OutputFormatter) error {
	job, loadDiags, err := LoadJob(JobRequest{Inputs: inputs, Name: opts.Name}, opts.config())
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInput, "load inputs", err)
	}
	if loadDiags.HasErrors() {
		f.Diagnostics(loadDiags)
		return diagnosticsFailure(f, CheckResult{Diagnostics: loadDiags}, loadDiags)
	}
	popts, err := opts.pipelineOptions(true)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid settings", err)
	}

	res, err := fusion.New(popts).RunTo(ctx, job, fusion.StageUnify)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInternal, "check failed", err)
	}

	result := CheckResult{
		Job:         job.Name,
		Units:       len(job.Units),
		Symbols:     []*unify.Symbol{},
		Diagnostics: append(loadDiags, res.Diags...),
	}
	if res.Symbols != nil {
		result.Symbols = res.Symbols.Symbols()
	}
	f.Diagnostics(result.Diagnostics)
	if !res.OK() {
		return diagnosticsFailure(f, result, result.Diagnostics)
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tKIND\tSIGNATURE\tDECLARED")
	for _, s := range result.Symbols {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Kind, s.Signature(), s.Pos)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "✓ %d symbol(s) from %d unit(s)\n", len(result.Symbols), result.Units)
	return nil
}
