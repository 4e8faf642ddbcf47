// Package unify merges adapted fragments into one program tree.
//
// Unification is a barrier: it runs once every fragment is available, on a
// single goroutine, and takes ownership of the fragment nodes. Fragments of
// the same module share a namespace whatever their language. Declarations
// are keyed by qualified name (module.name); the first declaration wins,
// later compatible ones are dropped with a shadowing warning and
// incompatible ones are reported as conflicts.
package unify

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/rift/internal/adapter"
	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Options tunes Unify.
type Options struct {
	Logger *zap.Logger
}

// Result is the unified program. Program is built even when Diags holds
// errors so callers can still inspect it; it must not be optimized or
// emitted in that case.
type Result struct {
	Program *ir.Node
	Symbols *SymbolTable
	Diags   diag.List
}

type unifier struct {
	log     *zap.Logger
	table   *SymbolTable
	modules map[string]*ir.Node
	program *ir.Node
	diags   diag.List

	// winners holds the declaration nodes that won their qualified name.
	winners map[*ir.Node]bool
	// broken holds alias names whose resolution already failed.
	broken map[string]bool
}

// Unify merges frags, in order, into a Program root. The fragment roots are
// emptied: their children move into the program.
func Unify(frags []*adapter.Fragment, opts Options) *Result {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	u := &unifier{
		log:     log,
		table:   NewSymbolTable(),
		modules: make(map[string]*ir.Node),
		program: &ir.Node{Kind: ir.KindProgram},
		winners: make(map[*ir.Node]bool),
		broken:  make(map[string]bool),
	}

	for _, f := range frags {
		u.module(f)
	}
	for _, f := range frags {
		u.declare(f)
	}
	u.check()
	for _, f := range frags {
		u.resolve(f)
	}
	for _, f := range frags {
		u.collect(f)
	}

	log.Debug("unified fragments",
		zap.Int("fragments", len(frags)),
		zap.Int("modules", len(u.program.Children)),
		zap.Int("symbols", u.table.Len()),
		zap.Int("diagnostics", len(u.diags)),
		zap.Duration("took", time.Since(start)))
	return &Result{Program: u.program, Symbols: u.table, Diags: u.diags.Sorted()}
}

// module registers the fragment's module, in first-appearance order.
func (u *unifier) module(f *adapter.Fragment) {
	name := f.Unit.Module()
	if _, ok := u.modules[name]; ok {
		return
	}
	m := &ir.Node{Kind: ir.KindModule, Name: name, Lang: f.Unit.Lang(), Pos: f.Root.Pos}
	u.modules[name] = m
	u.program.Children = append(u.program.Children, m)
}

func (u *unifier) isProgramModule(name string) bool {
	_, ok := u.modules[name]
	return ok
}

func literalType(n *ir.Node) string {
	switch n.Kind {
	case ir.KindInt:
		return ir.TypeInt
	case ir.KindFloat:
		return ir.TypeFloat
	case ir.KindString:
		return ir.TypeString
	case ir.KindBool:
		return ir.TypeBool
	}
	return ""
}

// declare records the fragment's top-level declarations.
func (u *unifier) declare(f *adapter.Fragment) {
	module := f.Unit.Module()
	for _, c := range f.Root.Children {
		sym := &Symbol{Module: module, Local: c.Name, Lang: c.Lang, Pos: c.Pos}
		switch c.Kind {
		case ir.KindFunc:
			if c.IsGoInit() {
				u.winners[c] = true
				continue
			}
			sym.Kind = SymFunc
			sym.Type = c.Type
			for _, p := range c.Params().Children {
				sym.Params = append(sym.Params, p.Type)
			}
		case ir.KindVar:
			sym.Kind = SymVar
			sym.Type = c.Type
			if sym.Type == "" && len(c.Children) > 0 {
				sym.Type = literalType(c.Children[0])
			}
		case ir.KindImport:
			if c.Value == "" || !u.isProgramModule(c.Name) {
				continue
			}
			sym.Kind = SymAlias
			sym.Local = c.Alias
			sym.Target = Qualify(c.Name, c.Value)
		default:
			continue
		}
		sym.Name = Qualify(module, sym.Local)
		if _, won := u.table.Declare(sym); won {
			u.winners[c] = true
		}
	}
}

// check reports conflicts, shadowing, alias cycles and dangling aliases.
func (u *unifier) check() {
	for _, c := range u.table.Conflicts() {
		u.diags.Append(c)
	}
	for _, w := range u.table.Symbols() {
		for _, s := range u.table.Shadowed(w.Name) {
			if !compatible(w, s) || w.Kind == SymAlias {
				continue
			}
			u.diags.Add(diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.CodeShadowed,
				Kind:     diag.KindShadowed,
				Pos:      s.Pos,
				Message:  fmt.Sprintf("%s is already declared; the first declaration wins and this one is dropped", w.Name),
				Related:  []source.Pos{w.Pos},
			})
		}
	}

	order, cycles := u.table.Order()
	for _, c := range cycles {
		u.diags.Append(c)
		for _, name := range c.Cycle {
			u.broken[name] = true
		}
	}
	for _, s := range order {
		if s.Kind != SymAlias {
			continue
		}
		if _, err := u.table.Resolve(s.Name); err != nil {
			u.broken[s.Name] = true
			if target, ok := u.table.Lookup(s.Target); ok && u.broken[target.Name] {
				continue
			}
			u.diags.Append(&diag.UnresolvedSymbolError{Name: s.Target, Pos: s.Pos, Module: s.Module})
		}
	}
}

// resolver binds the references of one fragment.
type resolver struct {
	u       *unifier
	module  string
	lang    source.Language
	imports map[string]*ir.Node // local binding -> import
	blocks  bool
}

func (u *unifier) resolve(f *adapter.Fragment) {
	r := &resolver{
		u:       u,
		module:  f.Unit.Module(),
		lang:    f.Unit.Lang(),
		imports: make(map[string]*ir.Node),
		blocks:  blockScoped(f.Unit.Lang()),
	}
	for _, c := range f.Root.Children {
		if c.Kind != ir.KindImport {
			continue
		}
		if !u.isProgramModule(c.Name) {
			c.Ref = ir.RefExtern + c.Name
			if c.Value != "" {
				c.Ref += "." + c.Value
			}
		}
		if c.Alias != "" && (c.Value == "" || !u.isProgramModule(c.Name)) {
			if _, dup := r.imports[c.Alias]; !dup {
				r.imports[c.Alias] = c
			}
		}
	}

	// Module-level statements share one scope. Python has no block scope, so
	// variables first assigned inside module-level if/while bodies live there.
	top := newScope(nil)
	if !r.blocks {
		for _, c := range f.Root.Children {
			if !c.Kind.IsDecl() && c.Kind != ir.KindImport {
				declareVars(c, top)
			}
		}
	}

	for _, c := range f.Root.Children {
		switch c.Kind {
		case ir.KindImport:
		case ir.KindFunc:
			if u.winners[c] {
				c.Ref = Qualify(r.module, c.Name)
				r.funcDecl(c)
			}
		case ir.KindVar:
			if u.winners[c] {
				c.Ref = Qualify(r.module, c.Name)
				r.exprs(c, top)
			}
		default:
			r.stmt(c, top)
		}
	}
}

// declareVars declares every Var below n in sc.
func declareVars(n *ir.Node, sc *scope) {
	ir.Walk(n, func(c *ir.Node) bool {
		if c.Kind == ir.KindVar {
			sc.declare(c.Name)
		}
		return true
	})
}

func (r *resolver) funcDecl(fn *ir.Node) {
	sc := newScope(nil)
	for _, p := range fn.Params().Children {
		sc.declare(p.Name)
	}
	body := fn.Body()
	if !r.blocks {
		declareVars(body, sc)
	}
	// The body block shares the parameter scope.
	for _, s := range body.Children {
		r.stmt(s, sc)
	}
}

func (r *resolver) stmt(n *ir.Node, sc *scope) {
	switch n.Kind {
	case ir.KindBlock:
		if r.blocks {
			sc = newScope(sc)
		}
		for _, s := range n.Children {
			r.stmt(s, sc)
		}
	case ir.KindVar:
		r.exprs(n, sc)
		sc.declare(n.Name)
	case ir.KindAssign:
		r.exprs(n, sc)
		r.assignTarget(n, sc)
	case ir.KindIf, ir.KindWhile:
		n.Children[0] = r.expr(n.Children[0], sc)
		for _, s := range n.Children[1:] {
			r.stmt(s, sc)
		}
	default:
		r.exprs(n, sc)
	}
}

// exprs resolves every child of n as an expression.
func (r *resolver) exprs(n *ir.Node, sc *scope) {
	for i, c := range n.Children {
		n.Children[i] = r.expr(c, sc)
	}
}

func (r *resolver) expr(n *ir.Node, sc *scope) *ir.Node {
	switch n.Kind {
	case ir.KindIdent:
		r.ident(n, sc)
		return n
	case ir.KindSelector:
		if x := r.qualifiedMember(n, sc); x != nil {
			return x
		}
	}
	r.exprs(n, sc)
	return n
}

func (r *resolver) lookupNamespace(name string) (*Symbol, bool) {
	q := Qualify(r.module, name)
	if _, ok := r.u.table.Lookup(q); !ok {
		return nil, false
	}
	if r.u.broken[q] {
		return &Symbol{Name: q}, true
	}
	s, err := r.u.table.Resolve(q)
	if err != nil {
		return &Symbol{Name: q}, true
	}
	return s, true
}

func (r *resolver) ident(n *ir.Node, sc *scope) {
	if sc.has(n.Name) {
		return
	}
	if s, ok := r.lookupNamespace(n.Name); ok {
		n.Ref = s.Name
		return
	}
	if imp, ok := r.imports[n.Name]; ok {
		if imp.Ref == "" {
			r.u.diags.Add(diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.CodeUnresolved,
				Kind:     diag.KindUnresolved,
				Pos:      n.Pos,
				Message:  fmt.Sprintf("module %s is used as a value", imp.Name),
				Hint:     "refer to one of its members, as in " + n.Name + ".name",
			})
			return
		}
		n.Ref = imp.Ref
		n.Lang = r.lang
		return
	}
	if builtins[r.lang][n.Name] {
		n.Ref = ir.RefBuiltin + n.Name
		n.Lang = r.lang
		return
	}
	r.u.diags.Append(&diag.UnresolvedSymbolError{Name: n.Name, Pos: n.Pos, Module: r.module})
}

// qualifiedMember rewrites m.x, where m binds a program module, to a direct
// reference to the declaration. It returns nil when n is not such a
// selector.
func (r *resolver) qualifiedMember(n *ir.Node, sc *scope) *ir.Node {
	operand := n.Operand()
	if operand == nil || operand.Kind != ir.KindIdent || sc.has(operand.Name) {
		return nil
	}
	if _, ok := r.lookupNamespace(operand.Name); ok {
		return nil
	}
	imp, ok := r.imports[operand.Name]
	if !ok || imp.Ref != "" {
		return nil
	}
	q := Qualify(imp.Name, n.Name)
	if r.u.broken[q] {
		return &ir.Node{Kind: ir.KindIdent, Name: n.Name, Ref: q, Pos: n.Pos}
	}
	s, err := r.u.table.Resolve(q)
	if err != nil {
		r.u.diags.Append(&diag.UnresolvedSymbolError{
			Name: operand.Name + "." + n.Name, Pos: n.Pos, Module: imp.Name,
		})
		return &ir.Node{Kind: ir.KindIdent, Name: n.Name, Ref: q, Pos: n.Pos}
	}
	return &ir.Node{Kind: ir.KindIdent, Name: s.Local, Ref: s.Name, Pos: n.Pos}
}

func (r *resolver) assignTarget(n *ir.Node, sc *scope) {
	if sc.has(n.Name) {
		return
	}
	if s, ok := r.lookupNamespace(n.Name); ok && s.Kind == SymVar {
		n.Ref = s.Name
		return
	}
	r.u.diags.Append(&diag.UnresolvedSymbolError{Name: n.Name, Pos: n.Pos, Module: r.module})
}

func importKey(n *ir.Node) string {
	return strings.Join([]string{string(n.Lang), n.Name, n.Path, n.Value, n.Alias}, "\x00")
}

// collect moves the fragment's surviving nodes into its module.
func (u *unifier) collect(f *adapter.Fragment) {
	m := u.modules[f.Unit.Module()]
	for _, c := range ir.Detach(f.Root) {
		switch c.Kind {
		case ir.KindImport:
			dup := false
			for _, prev := range m.Children {
				if prev.Kind == ir.KindImport && importKey(prev) == importKey(c) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		case ir.KindFunc, ir.KindVar:
			if !u.winners[c] {
				continue
			}
		}
		m.Children = append(m.Children, c)
	}
}
