package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rift/internal/source"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	FuseOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{FuseOptions: FuseOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <inputs...>",
		Short: "Re-fuse whenever an input changes",
		Long: `Fuse the inputs once, then watch them and fuse again after every change.
Failed builds are reported and watching continues. Stops on interrupt.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, args, opts.formatter(cmd))
		},
	}

	addFuseFlags(cmd, &opts.FuseOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before rebuilding")
	return cmd
}

// watchedFiles lists the files behind the inputs. Manifest fragments read
// from other files are included when the manifest loads.
func watchedFiles(opts *WatchOptions, inputs []string) map[string]bool {
	files := make(map[string]bool)
	for _, arg := range inputs {
		if isManifest(arg) {
			files[filepath.Clean(arg)] = true
			continue
		}
		if in, err := source.ParseInput(arg); err == nil {
			files[filepath.Clean(in.Path)] = true
		}
	}
	jobs, _, err := LoadJobs(JobRequest{Inputs: inputs, Name: opts.Name}, opts.config())
	if err == nil {
		for _, job := range jobs {
			for _, u := range job.Units {
				files[filepath.Clean(u.Path())] = true
			}
		}
	}
	return files
}

func runWatch(ctx context.Context, opts *WatchOptions, inputs []string, f *OutputFormatter) error {
	log := opts.logger().With(zap.String("command", "watch"))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInternal, "start watcher", err)
	}
	defer watcher.Close()

	// Directories are watched rather than files so editors that save by
	// renaming keep triggering events.
	dirs := make(map[string]bool)
	files := make(map[string]bool)
	track := func() error {
		for file := range watchedFiles(opts, inputs) {
			files[file] = true
			dir := filepath.Dir(file)
			if dirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				return err
			}
			dirs[dir] = true
			log.Debug("watching directory", zap.String("dir", dir))
		}
		return nil
	}
	if err := track(); err != nil {
		return failWith(f, ExitCommandError, ErrCodeInput, "watch inputs", err)
	}

	builds := 0
	build := func() {
		builds++
		if err := runFuse(ctx, &opts.FuseOptions, inputs, f); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug("build failed", zap.Int("build", builds), zap.Error(err))
			if f.Format != "json" {
				fmt.Fprintf(f.Writer, "✗ build %d failed: %v\n", builds, err)
			}
		}
		if err := track(); err != nil {
			log.Warn("cannot watch new inputs", zap.Error(err))
		}
	}
	build()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug("watch stopped", zap.Int("builds", builds))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(event.Name)] || event.Op == fsnotify.Chmod {
				continue
			}
			log.Debug("input changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			build()
		}
	}
}
