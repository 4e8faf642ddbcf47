package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is the sealed set of values canonical JSON accepts. There is no
// float and no null: literals of those kinds travel as text.
type IRValue interface {
	irValue()
}

type IRString string

func (IRString) irValue() {}

type IRInt int64

func (IRInt) irValue() {}

type IRBool bool

func (IRBool) irValue() {}

type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is an unordered map; SortedKeys gives canonical order.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys ordered by UTF-16 code units, as RFC 8785 requires.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 differs from plain string comparison for characters outside
// the BMP, which UTF-16 encodes as surrogates below U+E000.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Canonical converts a node to its canonical object form. Positions are
// left out.
func (n *Node) Canonical() IRObject { return toValue(n) }

func toValue(n *Node) IRObject {
	obj := IRObject{"kind": IRString(n.Kind.String())}
	put := func(key, v string) {
		if v != "" {
			obj[key] = IRString(v)
		}
	}
	put("name", n.Name)
	put("value", n.Value)
	put("op", string(n.Op))
	put("type", n.Type)
	put("alias", n.Alias)
	put("path", n.Path)
	put("ref", n.Ref)
	put("lang", string(n.Lang))
	if len(n.Children) > 0 {
		children := make(IRArray, len(n.Children))
		for i, c := range n.Children {
			children[i] = toValue(c)
		}
		obj["children"] = children
	}
	return obj
}
