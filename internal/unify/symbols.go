package unify

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

// SymbolKind classifies a module-level declaration.
type SymbolKind int

const (
	SymFunc SymbolKind = iota
	SymVar
	SymAlias // a program module member re-bound by an import
)

func (k SymbolKind) String() string {
	switch k {
	case SymFunc:
		return "func"
	case SymVar:
		return "var"
	case SymAlias:
		return "alias"
	}
	return "unknown"
}

// MarshalText renders the kind by name in JSON output.
func (k SymbolKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Symbol is one declaration site of a qualified name.
type Symbol struct {
	Name   string          `json:"name"` // module.local
	Module string          `json:"module"`
	Local  string          `json:"local"`
	Kind   SymbolKind      `json:"kind"`
	Params []string        `json:"params,omitempty"` // declared param types, "" when dynamic
	Type   string          `json:"type,omitempty"`   // result type for funcs
	Target string          `json:"target,omitempty"` // aliases only
	Lang   source.Language `json:"lang"`
	Pos    source.Pos      `json:"pos"`
}

// Qualify joins a module and a local name.
func Qualify(module, name string) string { return module + "." + name }

func typeOrAny(t string) string {
	if t == "" {
		return "any"
	}
	return t
}

// Signature renders the symbol for conflict messages.
func (s *Symbol) Signature() string {
	switch s.Kind {
	case SymFunc:
		params := make([]string, len(s.Params))
		for i, p := range s.Params {
			params[i] = typeOrAny(p)
		}
		sig := fmt.Sprintf("%s func %s(%s)", s.Lang, s.Local, strings.Join(params, ", "))
		if s.Type != "" {
			sig += " " + s.Type
		}
		return sig
	case SymVar:
		return fmt.Sprintf("%s var %s %s", s.Lang, s.Local, typeOrAny(s.Type))
	case SymAlias:
		return fmt.Sprintf("%s import %s = %s", s.Lang, s.Local, s.Target)
	}
	return s.Name
}

func (s *Symbol) site() diag.Site {
	return diag.Site{Pos: s.Pos, Signature: s.Signature()}
}

func typesAgree(a, b string) bool {
	return a == "" || b == "" || a == b
}

// compatible reports whether two declarations of one qualified name can
// coexist, the later one shadowing the earlier.
func compatible(a, b *Symbol) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SymFunc:
		if len(a.Params) != len(b.Params) || !typesAgree(a.Type, b.Type) {
			return false
		}
		for i := range a.Params {
			if !typesAgree(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	case SymVar:
		return typesAgree(a.Type, b.Type)
	case SymAlias:
		return a.Target == b.Target
	}
	return false
}

// SymbolTable maps qualified names to their winning declaration. It is
// filled incrementally by Declare; the first declaration of a name wins and
// later ones are kept only for diagnostics.
type SymbolTable struct {
	winners map[string]*Symbol
	all     map[string][]*Symbol
	order   []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		winners: make(map[string]*Symbol),
		all:     make(map[string][]*Symbol),
	}
}

// Declare records s. It returns the winning symbol for s.Name and whether s
// became the winner.
func (t *SymbolTable) Declare(s *Symbol) (*Symbol, bool) {
	t.all[s.Name] = append(t.all[s.Name], s)
	if w, ok := t.winners[s.Name]; ok {
		return w, false
	}
	t.winners[s.Name] = s
	t.order = append(t.order, s.Name)
	return s, true
}

// Lookup returns the winning declaration of a qualified name.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	s, ok := t.winners[name]
	return s, ok
}

// Len is the number of distinct qualified names.
func (t *SymbolTable) Len() int { return len(t.order) }

// Symbols returns the winners in declaration order.
func (t *SymbolTable) Symbols() []*Symbol {
	out := make([]*Symbol, len(t.order))
	for i, name := range t.order {
		out[i] = t.winners[name]
	}
	return out
}

// Resolve follows aliases from name to a func or var declaration.
func (t *SymbolTable) Resolve(name string) (*Symbol, error) {
	seen := make(map[string]bool)
	var chain []string
	for {
		s, ok := t.winners[name]
		if !ok {
			e := &diag.UnresolvedSymbolError{Name: name}
			if len(chain) > 0 {
				e.Pos = t.winners[chain[len(chain)-1]].Pos
			}
			return nil, e
		}
		if s.Kind != SymAlias {
			return s, nil
		}
		if seen[name] {
			return nil, &diag.UnresolvedSymbolError{Name: chain[0], Pos: t.winners[chain[0]].Pos, Cycle: append(chain, name)}
		}
		seen[name] = true
		chain = append(chain, name)
		name = s.Target
	}
}

// Conflicts returns one ConflictError per incompatible pair of declarations
// of the same name. The result does not depend on declaration order.
func (t *SymbolTable) Conflicts() []*diag.ConflictError {
	var out []*diag.ConflictError
	for _, name := range t.order {
		decls := t.all[name]
		for i := range decls {
			for j := i + 1; j < len(decls); j++ {
				if !compatible(decls[i], decls[j]) {
					out = append(out, diag.NewConflictError(name, decls[i].site(), decls[j].site()))
				}
			}
		}
	}
	return out
}

// Shadowed returns the later declarations of name that lost to the winner.
func (t *SymbolTable) Shadowed(name string) []*Symbol {
	if decls := t.all[name]; len(decls) > 1 {
		return decls[1:]
	}
	return nil
}
