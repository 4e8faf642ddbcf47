package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/manifest"
	"github.com/roach88/rift/internal/source"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	FuseOptions
}

const replHelp = `Input forms:
  @rift name { @target "lang" @fuse "lang" [module] { "code" } }   define or replace a rift
  @task name { @target "lang" call name; }                       define or replace a task
  call name;                      fuse a rift, or run the calls of a task
  call optimize with name;        the same with the optimizer forced on
  @target "lang"[, ...]           set the session targets

Commands:
  help     show this help
  status   show the session's rifts, tasks and targets
  clear    forget every definition and the session targets
  exit     leave (also quit or end of input)`

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{FuseOptions: FuseOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Define rifts and tasks interactively and fuse them on call",
		Long: `Start an interactive session. Each line is manifest text: @rift and
@task lines define or replace entries, and call lines run them through the
full pipeline, writing artifacts to the output directory.

Type help in the session for the input forms.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: "text", Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
			return runRepl(cmd.Context(), opts, cmd.InOrStdin(), f)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Targets, "target", "t", nil, "session targets (default from config)")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&opts.NoOptimize, "no-optimize", false, "skip the optimizer unless a call asks for it")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the artifact cache")
	return cmd
}

// session is the state of one repl run.
type session struct {
	opts    *ReplOptions
	pipe    *fusion.Pipeline
	log     *zap.Logger
	defs    *manifest.Manifest
	targets []source.Language
	inputs  int
	runs    int
	written int
}

func (s *session) clear() {
	s.defs = &manifest.Manifest{Path: "<session>"}
	s.targets = nil
}

func runRepl(ctx context.Context, opts *ReplOptions, in io.Reader, f *OutputFormatter) error {
	targets, err := ParseTargets(opts.Targets)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeConfig, "invalid --target", err)
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

	s := &session{opts: opts, pipe: fusion.New(popts), log: opts.logger().With(zap.String("command", "repl"))}
	s.clear()
	s.targets = targets

	fmt.Fprintln(f.Writer, "rift session; type help for the input forms, exit to leave")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(f.Writer, "rift> ")
		if !scanner.Scan() {
			fmt.Fprintln(f.Writer)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(f.Writer, replHelp)
			continue
		case "status":
			s.status(f.Writer)
			continue
		case "clear":
			s.clear()
			fmt.Fprintln(f.Writer, "session cleared")
			continue
		}
		err := s.eval(ctx, line, f)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) || !exitErr.Reported {
				fmt.Fprintf(f.GetErrWriter(), "Error: %v\n", err)
			}
			continue
		}
		fmt.Fprintln(f.Writer, "ok")
	}
}

var targetCleaner = strings.NewReplacer(`"`, "", ";", "")

// errInput marks input whose diagnostics were already printed.
var errInput = reportedExit(ExitFailure, "invalid input")

// eval handles one line of manifest text.
func (s *session) eval(ctx context.Context, line string, f *OutputFormatter) error {
	if rest, ok := strings.CutPrefix(line, "@target"); ok {
		targets, err := ParseTargets([]string{targetCleaner.Replace(rest)})
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("@target needs at least one language")
		}
		s.targets = targets
		return nil
	}

	s.inputs++
	frag, diags := manifest.ParseFragment(fmt.Sprintf("<input %d>", s.inputs), []byte(line))
	if diags.HasErrors() {
		f.Diagnostics(diags)
		fmt.Fprintln(f.GetErrWriter(), "hint: type help for the input forms")
		return errInput
	}
	m := s.defs.Merge(frag)
	if errs := m.Check(); errs.HasErrors() {
		f.Diagnostics(errs)
		return errInput
	}
	defs := *m
	defs.Calls = nil
	s.defs = &defs
	s.log.Debug("input accepted", zap.Int("input", s.inputs), zap.Int("rifts", len(m.Rifts)), zap.Int("tasks", len(m.Tasks)), zap.Int("calls", len(m.Calls)))
	if len(m.Calls) == 0 {
		return nil
	}

	jobs, err := fusion.JobsFromManifest(m, "", s.targets)
	if err != nil {
		return err
	}
	defaults, err := s.opts.config().TargetLanguages()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if len(job.Targets) == 0 {
			job.Targets = defaults
		}
		result, err := fuseJob(ctx, &s.opts.FuseOptions, s.pipe, job, nil, f)
		if err != nil {
			return err
		}
		s.runs++
		s.written += len(result.Artifacts)
	}
	return nil
}

func (s *session) status(w io.Writer) {
	names := func(n int, name func(int) string) string {
		if n == 0 {
			return "0"
		}
		parts := make([]string, n)
		for i := range parts {
			parts[i] = name(i)
		}
		return fmt.Sprintf("%d (%s)", n, strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "rifts: %s\n", names(len(s.defs.Rifts), func(i int) string { return s.defs.Rifts[i].Name }))
	fmt.Fprintf(w, "tasks: %s\n", names(len(s.defs.Tasks), func(i int) string { return s.defs.Tasks[i].Name }))
	if len(s.targets) == 0 {
		fmt.Fprintf(w, "targets: %s (config)\n", strings.Join(s.opts.config().Targets, ", "))
	} else {
		parts := make([]string, len(s.targets))
		for i, t := range s.targets {
			parts[i] = string(t)
		}
		fmt.Fprintf(w, "targets: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "runs: %d, artifacts written: %d\n", s.runs, s.written)
}
