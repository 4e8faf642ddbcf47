// Package optimize rewrites a unified program with a fixed, ordered
// sequence of passes. Every pass is run to a fixpoint under an iteration
// cap, and the whole sequence repeats until a round changes nothing.
package optimize

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
)

// DefaultMaxIterations caps both the per-pass fixpoint loop and the number
// of rounds over the whole sequence.
const DefaultMaxIterations = 16

// Pass is one rewrite over the program tree. Apply reports whether it
// changed anything; applying a pass to its own output must report false.
type Pass interface {
	Name() string
	Apply(prog *ir.Node) (bool, error)
}

type passFunc struct {
	name string
	fn   func(*ir.Node) bool
}

func (p passFunc) Name() string { return p.name }

func (p passFunc) Apply(prog *ir.Node) (bool, error) { return p.fn(prog), nil }

// NewPass wraps fn as a pass.
func NewPass(name string, fn func(*ir.Node) bool) Pass {
	return passFunc{name: name, fn: fn}
}

// Pass names, in their fixed order.
const (
	PassConstFold = "constfold"
	PassDCE       = "dce"
	PassInline    = "inline"
)

// DefaultPasses returns every built-in pass in order.
func DefaultPasses() []Pass {
	return []Pass{
		NewPass(PassConstFold, foldConstants),
		NewPass(PassDCE, eliminateDeadCode),
		NewPass(PassInline, inlineCalls),
	}
}

// PassNames lists the built-in pass names in order.
func PassNames() []string {
	return []string{PassConstFold, PassDCE, PassInline}
}

// PassesByName selects built-in passes. The fixed order is kept whatever
// order names come in.
func PassesByName(names []string) ([]Pass, error) {
	for _, n := range names {
		if !slices.Contains(PassNames(), n) {
			return nil, fmt.Errorf("unknown optimizer pass %q (want one of %v)", n, PassNames())
		}
	}
	var out []Pass
	for _, p := range DefaultPasses() {
		if slices.Contains(names, p.Name()) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Options tunes Optimize.
type Options struct {
	Passes        []Pass // nil means DefaultPasses
	MaxIterations int    // zero means DefaultMaxIterations
	Logger        *zap.Logger
}

// Stats describes an optimizer run.
type Stats struct {
	Rounds      int            `json:"rounds"`
	Iterations  map[string]int `json:"iterations"` // applications that changed the tree, per pass
	NodesBefore int            `json:"nodes_before"`
	NodesAfter  int            `json:"nodes_after"`
}

// Optimize rewrites prog in place. Passes run one after another on the
// calling goroutine; ctx is checked between passes. A pass that keeps
// changing the tree past the cap fails with a NonConvergenceError.
func Optimize(ctx context.Context, prog *ir.Node, opts Options) (*Stats, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	passes := opts.Passes
	if passes == nil {
		passes = DefaultPasses()
	}
	limit := opts.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	stats := &Stats{Iterations: make(map[string]int), NodesBefore: ir.Count(prog)}
	for _, p := range passes {
		stats.Iterations[p.Name()] = 0
	}

	var lastChanged string
	for {
		if stats.Rounds == limit {
			return stats, &diag.NonConvergenceError{Pass: lastChanged, Iterations: limit}
		}
		stats.Rounds++
		roundChanged := false
		for _, p := range passes {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			start := time.Now()
			n, err := fixpoint(p, prog, limit)
			stats.Iterations[p.Name()] += n
			if err != nil {
				return stats, err
			}
			if n > 0 {
				roundChanged = true
				lastChanged = p.Name()
			}
			log.Debug("optimizer pass",
				zap.String("pass", p.Name()),
				zap.Int("round", stats.Rounds),
				zap.Int("changes", n),
				zap.Duration("took", time.Since(start)))
		}
		if !roundChanged {
			break
		}
	}
	stats.NodesAfter = ir.Count(prog)
	return stats, nil
}

// fixpoint applies p until it reports no change and returns how many
// applications changed the tree.
func fixpoint(p Pass, prog *ir.Node, limit int) (int, error) {
	for i := 0; ; i++ {
		if i == limit {
			return i, &diag.NonConvergenceError{Pass: p.Name(), Iterations: limit}
		}
		changed, err := p.Apply(prog)
		if err != nil {
			return i, fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if !changed {
			return i, nil
		}
	}
}
