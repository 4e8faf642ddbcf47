package unify

import "github.com/roach88/rift/internal/source"

// scope is one level of local bindings.
type scope struct {
	parent *scope
	names  map[string]bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]bool)}
}

func (s *scope) declare(name string) { s.names[name] = true }

func (s *scope) has(name string) bool {
	for ; s != nil; s = s.parent {
		if s.names[name] {
			return true
		}
	}
	return false
}

// builtins are names each language provides without an import. Print and
// len are lowered to dedicated nodes by the adapters and are not listed.
var builtins = map[source.Language]map[string]bool{
	source.Python: set("abs", "bool", "float", "int", "input", "isinstance", "max", "min",
		"range", "round", "str", "sum", "type"),
	source.JavaScript: set("Array", "Boolean", "JSON", "Math", "Number", "Object", "String",
		"console", "isNaN", "parseFloat", "parseInt"),
	source.Go: set("append", "cap", "float64", "int", "int64", "make", "max", "min", "new",
		"panic", "print", "println", "string"),
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// blockScoped reports whether a language opens a new scope per block.
// Python scopes locals to the whole function.
func blockScoped(lang source.Language) bool {
	return lang != source.Python
}
