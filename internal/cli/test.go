package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rift/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // keep scenarios whose name contains this
	GoldenDir string // defaults to <dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Errors  []string `json:"errors,omitempty"`
	Updated []string `json:"updated,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run fusion scenarios",
		Long: `Run every YAML scenario in a directory through the pipeline and check
its expectations. Scenarios marked golden: true also compare their
artifacts with <scenarios-dir>/golden/<scenario>.<target>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenarios, etc.)

Examples:
  rift test ./scenarios
  rift test ./scenarios --filter shapes
  rift test ./scenarios --update
  rift test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], opts.formatter(cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, dir string, f *OutputFormatter) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return failWith(f, ExitCommandError, ErrCodeInput, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	scenarios, err := harness.LoadDir(dir, opts.Filter)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInput, "load scenarios", err)
	}
	if len(scenarios) == 0 {
		if f.Format == "json" {
			return f.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	popts, err := opts.pipelineOptions(false)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid optimizer settings", err)
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}
	h := harness.New(harness.Options{Pipeline: popts, GoldenDir: goldenDir, Update: opts.Update})

	runs, err := h.RunAll(ctx, scenarios)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenarios interrupted", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(runs)),
		Total:     len(runs),
	}
	for _, r := range runs {
		result.Scenarios = append(result.Scenarios, ScenarioResult{
			Name:    r.Scenario,
			Pass:    r.Pass,
			Errors:  r.Errors,
			Updated: r.Updated,
		})
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if f.Format == "json" {
		return outputTestJSON(f, result)
	}
	return outputTestText(f, result)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return f.Success(result)
	}
	if err := f.Failure(result, ErrCodeScenario, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total)); err != nil {
		return err
	}
	return reportedExit(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
}

// outputTestText outputs the test result as human-readable text.
func outputTestText(f *OutputFormatter, result TestResult) error {
	w := f.Writer
	for _, s := range result.Scenarios {
		switch {
		case !s.Pass:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		case len(s.Updated) > 0:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		default:
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return reportedExit(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
