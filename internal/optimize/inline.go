package optimize

import "github.com/roach88/rift/internal/ir"

// singleReturn returns the expression of a function whose body is exactly
// `return expr`.
func singleReturn(fn *ir.Node) *ir.Node {
	body := fn.Body()
	if body == nil || len(body.Children) != 1 {
		return nil
	}
	ret := body.Children[0]
	if ret.Kind != ir.KindReturn || len(ret.Children) != 1 {
		return nil
	}
	return ret.Children[0]
}

// inlineCandidates maps qualified names to single-return functions that
// cannot reach themselves through other candidates.
func inlineCandidates(prog *ir.Node) map[string]*ir.Node {
	cands := make(map[string]*ir.Node)
	for _, m := range prog.Children {
		for _, c := range m.Children {
			if c.Kind == ir.KindFunc && singleReturn(c) != nil {
				cands[m.Name+"."+c.Name] = c
			}
		}
	}
	calls := make(map[string][]string, len(cands))
	for name, fn := range cands {
		ir.Walk(singleReturn(fn), func(n *ir.Node) bool {
			if n.Kind == ir.KindIdent && cands[n.Ref] != nil {
				calls[name] = append(calls[name], n.Ref)
			}
			return true
		})
	}
	for name := range cands {
		if reaches(calls, name, name, map[string]bool{}) {
			delete(cands, name)
		}
	}
	return cands
}

func reaches(calls map[string][]string, from, to string, seen map[string]bool) bool {
	for _, next := range calls[from] {
		if next == to {
			return true
		}
		if !seen[next] {
			seen[next] = true
			if reaches(calls, next, to, seen) {
				return true
			}
		}
	}
	return false
}

// localNames lists the names n binds or uses as locals and parameters.
func localNames(n *ir.Node, into map[string]bool) {
	ir.Walk(n, func(c *ir.Node) bool {
		switch c.Kind {
		case ir.KindParam, ir.KindVar, ir.KindIdent, ir.KindAssign:
			if c.Ref == "" {
				into[c.Name] = true
			}
		}
		return true
	})
}

// captured reports whether body refers to a declaration by a name that a
// local of the calling scope would capture once the body is copied there.
func captured(body *ir.Node, locals map[string]bool) bool {
	found := false
	ir.Walk(body, func(x *ir.Node) bool {
		if x.Kind == ir.KindIdent && x.Ref != "" && locals[x.Name] {
			found = true
		}
		return !found
	})
	return found
}

// inlineCalls replaces calls to small non-recursive functions with a copy
// of the returned expression. Only calls whose arguments are literals or
// identifiers qualify, so no argument is evaluated a different number of
// times. A call is left alone when a local of the caller shares a name
// with a declaration the body refers to.
func inlineCalls(prog *ir.Node) bool {
	cands := inlineCandidates(prog)
	if len(cands) == 0 {
		return false
	}
	// Module-level statements of every module end up in one scope.
	top := make(map[string]bool)
	for _, m := range prog.Children {
		for _, c := range m.Children {
			switch c.Kind {
			case ir.KindFunc, ir.KindImport:
			case ir.KindVar:
				for _, x := range c.Children {
					localNames(x, top)
				}
			default:
				localNames(c, top)
			}
		}
	}

	changed := false
	for _, m := range prog.Children {
		for _, c := range m.Children {
			locals := top
			if c.Kind == ir.KindFunc {
				locals = make(map[string]bool)
				localNames(c.Params(), locals)
				localNames(c.Body(), locals)
			}
			if inlineIn(c, cands, locals) {
				changed = true
			}
		}
	}
	return changed
}

func inlineIn(root *ir.Node, cands map[string]*ir.Node, locals map[string]bool) bool {
	changed := false
	ir.Rewrite(root, func(n *ir.Node) *ir.Node {
		if n.Kind != ir.KindCall {
			return n
		}
		callee := n.Callee()
		if callee.Kind != ir.KindIdent {
			return n
		}
		fn, ok := cands[callee.Ref]
		if !ok {
			return n
		}
		args := n.Args()
		if len(args) != fn.Arity() {
			return n
		}
		subst := make(map[string]*ir.Node, len(args))
		for i, p := range fn.Params().Children {
			if !args[i].IsPure() {
				return n
			}
			subst[p.Name] = args[i]
		}
		body := singleReturn(fn)
		if body == nil || captured(body, locals) {
			return n
		}
		changed = true
		return ir.Rewrite(ir.Clone(body), func(x *ir.Node) *ir.Node {
			if x.IsLocal() {
				if a, ok := subst[x.Name]; ok {
					return ir.Clone(a)
				}
			}
			return x
		})
	})
	return changed
}
