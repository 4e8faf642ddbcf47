package cli

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rift/internal/store"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Limit  int
	Status string
	Name   string
}

// ClearResult is the payload of cache clear.
type ClearResult struct {
	Artifacts int64 `json:"artifacts"`
	Runs      int64 `json:"runs"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the artifact cache",
		Long: `Inspect or clear the artifact cache and run history kept at the
configured cache.path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "stats",
		Short:         "Show cached artifact counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, runCacheStats)
		},
	})

	runsCmd := &cobra.Command{
		Use:           "runs",
		Short:         "List recent fusion runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.RunFilter{Name: opts.Name, Limit: opts.Limit}
			if opts.Status != "" {
				status, err := store.ParseRunStatus(opts.Status)
				if err != nil {
					return failWith(opts.formatter(cmd), ExitCommandError, ErrCodeConfig, "invalid --status", err)
				}
				filter.Status = status
			}
			return withStore(opts, cmd, func(st *store.Store, cmd *cobra.Command, f *OutputFormatter) error {
				return runCacheRuns(st, cmd, f, filter)
			})
		},
	}
	runsCmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show (0 for all)")
	runsCmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (ok|error|failed)")
	runsCmd.Flags().StringVar(&opts.Name, "name", "", "only runs of this job")
	cmd.AddCommand(runsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:           "artifacts <fingerprint>",
		Short:         "List the artifacts cached for a program fingerprint",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, cmd *cobra.Command, f *OutputFormatter) error {
				return runCacheArtifacts(st, cmd, f, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Remove every cached artifact and the run history",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, runCacheClear)
		},
	})

	return cmd
}

// withStore opens the cache for the duration of fn.
func withStore(opts *CacheOptions, cmd *cobra.Command, fn func(*store.Store, *cobra.Command, *OutputFormatter) error) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeStore, "open artifact cache", err)
	}
	defer st.Close()
	if err := fn(st, cmd, f); err != nil {
		return failWith(f, ExitCommandError, ErrCodeStore, "artifact cache", err)
	}
	return nil
}

func runCacheStats(st *store.Store, cmd *cobra.Command, f *OutputFormatter) error {
	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if f.Format == "json" {
		return f.Success(stats)
	}
	fmt.Fprintf(f.Writer, "artifacts: %d (%d bytes)\n", stats.Artifacts, stats.Bytes)
	for _, target := range sortedKeys(stats.ByTarget) {
		fmt.Fprintf(f.Writer, "  %s: %d\n", target, stats.ByTarget[target])
	}
	fmt.Fprintf(f.Writer, "runs: %d\n", stats.Runs)
	return nil
}

func runCacheRuns(st *store.Store, cmd *cobra.Command, f *OutputFormatter, filter store.RunFilter) error {
	runs, err := st.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if f.Format == "json" {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tNAME\tSTATUS\tTARGETS\tERRORS\tWARNINGS\tCACHE HITS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%d\t%d\t%d\t%dms\n",
			r.Seq, r.Name, r.Status, r.Targets, r.Errors, r.Warnings, r.CacheHits, r.DurationMS)
	}
	return tw.Flush()
}

func runCacheArtifacts(st *store.Store, cmd *cobra.Command, f *OutputFormatter, fingerprint string) error {
	artifacts, err := st.ListArtifacts(cmd.Context(), fingerprint)
	if err != nil {
		return err
	}
	if f.Format == "json" {
		return f.Success(artifacts)
	}
	if len(artifacts) == 0 {
		fmt.Fprintf(f.Writer, "No artifacts cached for %s.\n", fingerprint)
		return nil
	}
	for _, a := range artifacts {
		fmt.Fprintf(f.Writer, "%s\t%s\t%s\n", a.Target, a.FileName, a.ContentHash)
	}
	return nil
}

func runCacheClear(st *store.Store, cmd *cobra.Command, f *OutputFormatter) error {
	artifacts, runs, err := st.Clear(cmd.Context())
	if err != nil {
		return err
	}
	if f.Format == "json" {
		return f.Success(ClearResult{Artifacts: artifacts, Runs: runs})
	}
	fmt.Fprintf(f.Writer, "✓ removed %d artifact(s) and %d run(s)\n", artifacts, runs)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
