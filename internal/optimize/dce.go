package optimize

import (
	"unicode"
	"unicode/utf8"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// eliminateDeadCode removes unreachable statements, statements without
// effects and private functions nothing refers to.
func eliminateDeadCode(prog *ir.Node) bool {
	changed := false
	ir.Walk(prog, func(n *ir.Node) bool {
		if n.Kind == ir.KindBlock || n.Kind == ir.KindModule {
			if pruneStatements(n) {
				changed = true
			}
		}
		return !n.Kind.IsExpr()
	})
	if removeUnusedPrivate(prog) {
		changed = true
	}
	return changed
}

// hasEffects reports whether evaluating x may do anything observable.
func hasEffects(x *ir.Node) bool {
	effects := false
	ir.Walk(x, func(n *ir.Node) bool {
		if n.Kind == ir.KindCall || n.Kind == ir.KindPrint {
			effects = true
		}
		return !effects
	})
	return effects
}

func declaresVars(block *ir.Node) bool {
	for _, s := range block.Children {
		if s.Kind == ir.KindVar {
			return true
		}
	}
	return false
}

func pruneStatements(n *ir.Node) bool {
	changed := false
	out := make([]*ir.Node, 0, len(n.Children))
	for i, s := range n.Children {
		switch s.Kind {
		case ir.KindIf:
			cond, ok := s.Cond().BoolValue()
			if !ok {
				break
			}
			changed = true
			branch := s.Then()
			if !cond {
				branch = s.Else()
			}
			switch {
			case branch == nil:
			case declaresVars(branch) || n.Kind == ir.KindModule:
				// keep the branch's scope
				out = append(out, branch)
			default:
				out = append(out, branch.Children...)
			}
			continue
		case ir.KindWhile:
			if cond, ok := s.Cond().BoolValue(); ok && !cond {
				changed = true
				continue
			}
		case ir.KindExprStmt:
			if !hasEffects(s) {
				changed = true
				continue
			}
		case ir.KindBlock:
			if len(s.Children) == 0 {
				changed = true
				continue
			}
		case ir.KindReturn:
			out = append(out, s)
			if i < len(n.Children)-1 {
				changed = true
			}
			n.Children = out
			return changed
		}
		out = append(out, s)
	}
	n.Children = out
	return changed
}

// isPrivate reports whether a function is invisible outside its module: a
// leading underscore, or an unexported Go name other than main and init.
func isPrivate(fn *ir.Node) bool {
	if fn.Name == "" || fn.Name[0] == '_' {
		return true
	}
	if fn.Lang != source.Go || fn.Name == "main" || fn.Name == "init" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(fn.Name)
	return unicode.IsLower(r)
}

// removeUnusedPrivate drops private top-level functions that nothing
// outside their own body refers to.
func removeUnusedPrivate(prog *ir.Node) bool {
	used := make(map[string]bool)
	for _, m := range prog.Children {
		for _, c := range m.Children {
			self := ""
			if c.Kind == ir.KindFunc {
				self = m.Name + "." + c.Name
			}
			ir.Walk(c, func(n *ir.Node) bool {
				if n.Ref != "" && n.Ref != self && n != c {
					used[n.Ref] = true
				}
				return true
			})
		}
	}
	changed := false
	for _, m := range prog.Children {
		kept := m.Children[:0]
		for _, c := range m.Children {
			if c.Kind == ir.KindFunc && isPrivate(c) && !used[m.Name+"."+c.Name] {
				changed = true
				continue
			}
			kept = append(kept, c)
		}
		m.Children = kept
	}
	return changed
}
