package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rift/internal/adapter"
	"github.com/roach88/rift/internal/emit"
	"github.com/roach88/rift/internal/source"
)

// LangInfo describes what rift can do with one language.
type LangInfo struct {
	Language source.Language `json:"language"`
	Ext      string          `json:"ext"`
	Source   bool            `json:"source"` // has an adapter
	Target   bool            `json:"target"` // has an emitter
}

// NewLangsCommand creates the langs command.
func NewLangsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "langs",
		Short:         "List source adapters and target emitters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLangs(rootOpts.formatter(cmd), adapter.DefaultRegistry(), emit.DefaultRegistry())
		},
	}
}

// Languages reports each known language with its adapter and emitter
// support.
func Languages(adapters *adapter.Registry, emitters *emit.Registry) []LangInfo {
	sources := adapters.Languages()
	targets := emitters.Targets()
	out := make([]LangInfo, 0, len(source.Languages()))
	for _, l := range source.Languages() {
		out = append(out, LangInfo{
			Language: l,
			Ext:      l.Ext(),
			Source:   slices.Contains(sources, l),
			Target:   slices.Contains(targets, l),
		})
	}
	return out
}

func runLangs(f *OutputFormatter, adapters *adapter.Registry, emitters *emit.Registry) error {
	langs := Languages(adapters, emitters)
	if f.Format == "json" {
		return f.Success(langs)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tEXT\tSOURCE\tTARGET")
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Language, l.Ext, yesNo(l.Source), yesNo(l.Target))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
