package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// program is the flattened view of a Program tree that every target prints
// from. Names are assigned once so that references and declarations agree.
type program struct {
	target source.Language
	root   *ir.Node
	// items holds imports, declarations and statements of every module in
	// program order. Imports from other languages and program modules are
	// already filtered out.
	items []*ir.Node
	decls map[string]*ir.Node // qualified name -> Func or Var
	names map[string]string   // qualified name -> emitted name
	named map[*ir.Node]string // declaration -> emitted name
	// globals holds the qualified names of module variables.
	globals  map[string]bool
	keywords map[string]bool
}

// analyze flattens prog for target. reserved reports declarations whose
// name must be escaped even without a collision.
func analyze(target source.Language, prog *ir.Node, keywords map[string]bool, reserved func(decl *ir.Node) bool) (*program, error) {
	if prog == nil || prog.Kind != ir.KindProgram {
		return nil, fmt.Errorf("emit %s: expected a program tree", target)
	}
	if err := ir.CheckOwnership(prog); err != nil {
		return nil, fmt.Errorf("emit %s: %w", target, err)
	}
	p := &program{
		target:   target,
		root:     prog,
		decls:    make(map[string]*ir.Node),
		names:    make(map[string]string),
		named:    make(map[*ir.Node]string),
		globals:  make(map[string]bool),
		keywords: keywords,
	}

	seen := make(map[string]bool)
	count := make(map[string]int)
	for _, m := range prog.Children {
		for _, c := range m.Children {
			switch {
			case c.Kind == ir.KindImport:
				if c.Ref == "" || c.Lang != target {
					continue
				}
				key := c.Name + "\x00" + c.Path + "\x00" + c.Value + "\x00" + c.Alias
				if seen[key] {
					continue
				}
				seen[key] = true
			case c.IsGoInit():
			case c.Kind.IsDecl():
				q := m.Name + "." + c.Name
				p.decls[q] = c
				count[c.Name]++
				if c.Kind == ir.KindVar {
					p.globals[q] = true
				}
			}
			p.items = append(p.items, c)
		}
	}

	taken := make(map[string]bool)
	modules := make(map[string]string) // qualified name -> module
	for _, m := range prog.Children {
		for _, c := range m.Children {
			if !c.Kind.IsDecl() || c.IsGoInit() {
				continue
			}
			name := c.Name
			if count[name] > 1 {
				name = m.Name + "_" + name
			}
			name = identReplacer.Replace(name)
			if keywords[name] || (reserved != nil && reserved(c) && name == c.Name) {
				name += "_"
			}
			q := m.Name + "." + c.Name
			p.names[q] = name
			p.named[c] = name
			modules[q] = m.Name
			taken[name] = true
		}
	}
	p.nameInits(taken)
	p.avoidCapture(taken, modules)
	return p, nil
}

// nameInits names Go package initializers. Go keeps them all as init; other
// targets get one distinct function per initializer.
func (p *program) nameInits(taken map[string]bool) {
	for _, m := range p.root.Children {
		for _, c := range m.Children {
			if !c.IsGoInit() {
				continue
			}
			if p.target == source.Go {
				p.named[c] = "init"
				continue
			}
			base := identReplacer.Replace(m.Name + "_init")
			name := base
			for i := 2; taken[name] || p.keywords[name]; i++ {
				name = fmt.Sprintf("%s_%d", base, i)
			}
			p.named[c] = name
			taken[name] = true
		}
	}
}

var identReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_")

// bindingScope is a function, or the module-level code of the whole
// program, with the local names it binds and the declarations it uses.
type bindingScope struct {
	locals map[string]bool // emitted local names
	refs   []string        // qualified names, first use first
}

// scopes collects one bindingScope per function plus one for module-level
// statements, which every target prints into a single scope.
func (p *program) scopes() []*bindingScope {
	top := &bindingScope{locals: make(map[string]bool)}
	out := []*bindingScope{top}
	for _, n := range p.items {
		switch {
		case n.Kind == ir.KindFunc:
			sc := &bindingScope{locals: make(map[string]bool)}
			p.bindings(n.Params(), sc)
			p.bindings(n.Body(), sc)
			out = append(out, sc)
		case n.Kind == ir.KindVar:
			for _, c := range n.Children {
				p.bindings(c, top)
			}
		case n.Kind != ir.KindImport:
			p.bindings(n, top)
		}
	}
	return out
}

func (p *program) bindings(n *ir.Node, sc *bindingScope) {
	seen := make(map[string]bool, len(sc.refs))
	for _, q := range sc.refs {
		seen[q] = true
	}
	ir.Walk(n, func(c *ir.Node) bool {
		switch c.Kind {
		case ir.KindParam, ir.KindVar, ir.KindIdent, ir.KindAssign:
			if c.Ref == "" {
				sc.locals[p.local(c.Name)] = true
			} else if _, ok := p.decls[c.Ref]; ok && !seen[c.Ref] {
				seen[c.Ref] = true
				sc.refs = append(sc.refs, c.Ref)
			}
		}
		return true
	})
}

// avoidCapture renames declarations whose emitted name equals a local of a
// scope that refers to them, so the local does not capture the reference.
// The module prefix is tried first, then trailing underscores.
func (p *program) avoidCapture(taken map[string]bool, modules map[string]string) {
	scopes := p.scopes()
	for changed := true; changed; {
		changed = false
		for _, sc := range scopes {
			for _, q := range sc.refs {
				name := p.names[q]
				if !sc.locals[name] {
					continue
				}
				decl := p.decls[q]
				if prefixed := identReplacer.Replace(modules[q] + "_" + decl.Name); prefixed != name {
					name = prefixed
				}
				for sc.locals[name] || taken[name] || p.keywords[name] {
					name += "_"
				}
				taken[name] = true
				p.names[q] = name
				p.named[decl] = name
				changed = true
			}
		}
	}
}

// declName is the emitted name of a top-level declaration.
func (p *program) declName(decl *ir.Node) string { return p.named[decl] }

// local escapes a local or parameter name.
func (p *program) local(name string) string {
	if p.keywords[name] {
		return name + "_"
	}
	return name
}

// ident renders an identifier reference.
func (p *program) ident(n *ir.Node) (string, error) {
	switch {
	case n.Ref == "":
		return p.local(n.Name), nil
	case n.IsExtern() || n.IsBuiltin():
		if n.Lang != p.target {
			what := "external reference"
			if n.IsBuiltin() {
				what = "builtin"
			}
			return "", unsupported(p.target, n, what+" "+n.Name, fmt.Sprintf("%s is only available in %s", n.Name, n.Lang))
		}
		return n.Name, nil
	}
	name, ok := p.names[n.Ref]
	if !ok {
		return "", fmt.Errorf("emit %s: %s: reference to unknown declaration %s", p.target, n.Pos, n.Ref)
	}
	return name, nil
}

// assignTarget renders the name an Assign writes.
func (p *program) assignTarget(n *ir.Node) (string, error) {
	if n.Ref == "" {
		return p.local(n.Name), nil
	}
	name, ok := p.names[n.Ref]
	if !ok {
		return "", fmt.Errorf("emit %s: %s: assignment to unknown declaration %s", p.target, n.Pos, n.Ref)
	}
	return name, nil
}

// goEntries returns the emitted names of the Go-origin package initializers
// followed by the Go-origin main function. Targets without an implicit
// entry point call them explicitly, in that order.
func (p *program) goEntries() []string {
	var inits []string
	main := ""
	for _, m := range p.root.Children {
		for _, c := range m.Children {
			switch {
			case c.IsGoInit():
				inits = append(inits, p.named[c])
			case main == "" && c.Kind == ir.KindFunc && c.Name == "main" && c.Lang == source.Go && c.Arity() == 0:
				main = p.names[m.Name+".main"]
			}
		}
	}
	if main != "" {
		inits = append(inits, main)
	}
	return inits
}

// fileName is the artifact file name for the program.
func (p *program) fileName() string {
	name := p.root.Name
	if name == "" {
		name = DefaultName
	}
	return name + p.target.Ext()
}

// assignsGlobals lists, in first-use order, the module variables that the
// function body assigns.
func (p *program) assignsGlobals(fn *ir.Node) []string {
	var out []string
	seen := make(map[string]bool)
	ir.Walk(fn.Body(), func(n *ir.Node) bool {
		if n.Kind == ir.KindAssign && p.globals[n.Ref] && !seen[n.Ref] {
			seen[n.Ref] = true
			out = append(out, p.names[n.Ref])
		}
		return true
	})
	return out
}

// returnsValue reports whether fn returns a value anywhere in its body.
func returnsValue(fn *ir.Node) bool {
	found := false
	ir.Walk(fn.Body(), func(n *ir.Node) bool {
		if n.Kind == ir.KindReturn && len(n.Children) > 0 {
			found = true
		}
		return !found
	})
	return found
}

// elseIf returns the If when an else block holds exactly one If statement.
func elseIf(els *ir.Node) *ir.Node {
	if els != nil && len(els.Children) == 1 && els.Children[0].Kind == ir.KindIf {
		return els.Children[0]
	}
	return nil
}

func keywordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
