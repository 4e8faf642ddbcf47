// Package adapter lowers source units into IR fragments.
//
// Each Adapter is a pure function of its unit: it shares no mutable state,
// allocates its own tree-sitter parser per call, and reports every problem
// it finds as a diagnostic instead of stopping at the first one.
package adapter

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Adapter lowers units of one language.
type Adapter interface {
	Language() source.Language

	// Parse returns a KindModule root, or nil when the diagnostics contain
	// an error.
	Parse(ctx context.Context, unit *source.Unit) (*ir.Node, diag.List)
}

// Fragment is the adapted form of one unit.
type Fragment struct {
	Unit *source.Unit
	Root *ir.Node
}

// Registry maps languages to adapters.
type Registry struct {
	adapters map[source.Language]Adapter
}

// NewRegistry builds a registry from adapters. Later adapters replace
// earlier ones for the same language.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[source.Language]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Language()] = a
	}
	return r
}

// DefaultRegistry holds every built-in adapter.
func DefaultRegistry() *Registry {
	return NewRegistry(Python{}, JavaScript{}, Golang{})
}

// For returns the adapter for lang.
func (r *Registry) For(lang source.Language) (Adapter, error) {
	a, ok := r.adapters[lang]
	if !ok {
		return nil, fmt.Errorf("no source adapter for language %q", lang)
	}
	return a, nil
}

// Languages lists the languages with an adapter, sorted.
func (r *Registry) Languages() []source.Language {
	langs := make([]source.Language, 0, len(r.adapters))
	for l := range r.adapters {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

// Options tunes ParseAll.
type Options struct {
	// Parallelism bounds concurrent adapter tasks. Zero means NumCPU.
	Parallelism int
	Logger      *zap.Logger
}

// ParseAll adapts every unit, one task per unit, and waits for all of them.
// Diagnostics are returned in input order. Fragments are returned only for
// units that adapted cleanly.
//
// Cancellation is checked before each task starts; a cancelled context
// returns ctx.Err() and no fragments.
func (r *Registry) ParseAll(ctx context.Context, units []*source.Unit, opts Options) ([]*Fragment, diag.List, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	roots := make([]*ir.Node, len(units))
	diags := make([]diag.List, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, unit := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := r.For(unit.Lang())
			if err != nil {
				diags[i].Append(&diag.ParseError{
					Pos:      source.Pos{File: unit.Path()},
					Expected: "a unit in a language with a source adapter",
					Found:    fmt.Sprintf("language %q", unit.Lang()),
				})
				return nil
			}
			start := time.Now()
			roots[i], diags[i] = a.Parse(gctx, unit)
			log.Debug("adapted unit",
				zap.String("path", unit.Path()),
				zap.String("lang", string(unit.Lang())),
				zap.Int("diagnostics", len(diags[i])),
				zap.Duration("took", time.Since(start)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var all diag.List
	var frags []*Fragment
	for i, unit := range units {
		all.Add(diags[i]...)
		if roots[i] != nil && !diags[i].HasErrors() {
			frags = append(frags, &Fragment{Unit: unit, Root: roots[i]})
		}
	}
	return frags, all, nil
}
