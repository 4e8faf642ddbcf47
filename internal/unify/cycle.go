package unify

import (
	"slices"

	"github.com/roach88/rift/internal/diag"
)

// aliasGraph maps an alias to the alias it points at. Edges to func or var
// declarations are left out: they cannot take part in a cycle.
type aliasGraph map[string][]string

func (t *SymbolTable) aliasGraph() (aliasGraph, []string) {
	graph := make(aliasGraph)
	var nodes []string
	for _, name := range t.order {
		s := t.winners[name]
		if s.Kind != SymAlias {
			continue
		}
		nodes = append(nodes, name)
		graph[name] = nil
		if target, ok := t.winners[s.Target]; ok && target.Kind == SymAlias {
			graph[name] = append(graph[name], s.Target)
		}
	}
	return graph, nodes
}

// Order returns the winning symbols in resolution order: every alias comes
// after the declaration it resolves to. Aliases on a cycle are left out and
// reported, one error per cycle.
func (t *SymbolTable) Order() ([]*Symbol, []*diag.UnresolvedSymbolError) {
	var order []*Symbol
	for _, name := range t.order {
		if s := t.winners[name]; s.Kind != SymAlias {
			order = append(order, s)
		}
	}

	graph, nodes := t.aliasGraph()
	var cycles []*diag.UnresolvedSymbolError
	// Tarjan emits an SCC only after every SCC it reaches, so targets come
	// out before the aliases pointing at them.
	for _, scc := range tarjanSCC(graph, nodes) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := cyclePath(scc, graph)
			first := t.winners[path[0]]
			cycles = append(cycles, &diag.UnresolvedSymbolError{
				Name:   first.Name,
				Pos:    first.Pos,
				Module: first.Module,
				Cycle:  path,
			})
			continue
		}
		order = append(order, t.winners[scc[0]])
	}
	return order, cycles
}

func hasSelfLoop(node string, graph aliasGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components. nodes fixes the visiting
// order so the output is deterministic.
func tarjanSCC(graph aliasGraph, nodes []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks the cycle starting from its smallest member and closes it:
// [a, b, a].
func cyclePath(scc []string, graph aliasGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := slices.Min(scc)
	path := []string{start}
	for cur := start; ; {
		var next string
		for _, w := range graph[cur] {
			if members[w] {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		cur = next
	}
}
