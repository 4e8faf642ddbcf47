// Package emit lowers a finalized program tree to target-language source.
//
// Emitters only read the tree: several targets can be emitted from the same
// program concurrently. Each target produces one fused file.
package emit

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

// Version changes whenever emitted text changes for the same program. It is
// part of the artifact cache key.
const Version = "1"

// DefaultName is the file stem used when the program has no name.
const DefaultName = "main"

// Artifact is the emitted source for one target.
type Artifact struct {
	Target   source.Language `json:"target"`
	FileName string          `json:"file"`
	Text     string          `json:"-"`
	Hash     string          `json:"hash"`
}

// NewArtifact builds an artifact and hashes its text.
func NewArtifact(target source.Language, fileName, text string) *Artifact {
	return &Artifact{
		Target:   target,
		FileName: fileName,
		Text:     text,
		Hash:     ir.ContentHash(ir.DomainArtifact, []byte(text)),
	}
}

// Emitter lowers a Program tree for one target.
type Emitter interface {
	Target() source.Language
	Emit(prog *ir.Node) (*Artifact, error)
}

// Registry maps targets to emitters.
type Registry struct {
	emitters map[source.Language]Emitter
}

// NewRegistry builds a registry; later emitters replace earlier ones for the
// same target.
func NewRegistry(emitters ...Emitter) *Registry {
	r := &Registry{emitters: make(map[source.Language]Emitter, len(emitters))}
	for _, e := range emitters {
		r.emitters[e.Target()] = e
	}
	return r
}

// DefaultRegistry holds an emitter for every language.
func DefaultRegistry() *Registry {
	return NewRegistry(Python{}, JavaScript{}, Golang{}, Rust{})
}

// For returns the emitter for target.
func (r *Registry) For(target source.Language) (Emitter, error) {
	e, ok := r.emitters[target]
	if !ok {
		return nil, fmt.Errorf("no emitter for target %q", target)
	}
	return e, nil
}

// Targets lists the registered targets, sorted.
func (r *Registry) Targets() []source.Language {
	out := make([]source.Language, 0, len(r.emitters))
	for t := range r.emitters {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Options tunes EmitAll.
type Options struct {
	Parallelism int // zero means NumCPU
	Logger      *zap.Logger
	// Emit overrides how one target is produced, for example to go through
	// an artifact cache. It defaults to calling the emitter directly.
	Emit func(ctx context.Context, e Emitter, prog *ir.Node) (*Artifact, error)
}

// EmitAll emits prog for every target in parallel. Artifacts come back in
// targets order. The first failure cancels the remaining targets.
func (r *Registry) EmitAll(ctx context.Context, prog *ir.Node, targets []source.Language, opts Options) ([]*Artifact, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	emitOne := opts.Emit
	if emitOne == nil {
		emitOne = func(_ context.Context, e Emitter, prog *ir.Node) (*Artifact, error) { return e.Emit(prog) }
	}

	emitters := make([]Emitter, len(targets))
	for i, t := range targets {
		e, err := r.For(t)
		if err != nil {
			return nil, err
		}
		emitters[i] = e
	}

	out := make([]*Artifact, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, e := range emitters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			a, err := emitOne(gctx, e, prog)
			if err != nil {
				return err
			}
			out[i] = a
			log.Debug("emitted target",
				zap.String("target", string(e.Target())),
				zap.String("file", a.FileName),
				zap.Int("bytes", len(a.Text)),
				zap.Duration("took", time.Since(start)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func unsupported(target source.Language, n *ir.Node, construct, detail string) error {
	return &diag.UnsupportedConstructError{Target: string(target), Construct: construct, Pos: n.Pos, Detail: detail}
}
