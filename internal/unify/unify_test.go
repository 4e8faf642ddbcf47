package unify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rift/internal/adapter"
	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

type fixture struct {
	path, module, src string
}

func fragment(t *testing.T, fx fixture) *adapter.Fragment {
	t.Helper()
	lang, ok := source.DetectLanguage(fx.path)
	require.True(t, ok, fx.path)
	unit := source.NewUnit(fx.path, lang, fx.module, []byte(fx.src))
	a, err := adapter.DefaultRegistry().For(lang)
	require.NoError(t, err)
	root, diags := a.Parse(context.Background(), unit)
	require.False(t, diags.HasErrors(), diags.Format())
	return &adapter.Fragment{Unit: unit, Root: root}
}

func unify(t *testing.T, fixtures ...fixture) *Result {
	t.Helper()
	frags := make([]*adapter.Fragment, len(fixtures))
	for i, fx := range fixtures {
		frags[i] = fragment(t, fx)
	}
	res := Unify(frags, Options{})
	require.NoError(t, ir.CheckOwnership(res.Program))
	for _, f := range frags {
		assert.Empty(t, f.Root.Children, "fragment %s still owns nodes", f.Unit.Path())
	}
	return res
}

func moduleNamed(t *testing.T, prog *ir.Node, name string) *ir.Node {
	t.Helper()
	for _, m := range prog.Children {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("module %s not found", name)
	return nil
}

func declNamed(m *ir.Node, kind ir.Kind, name string) []*ir.Node {
	var out []*ir.Node
	for _, c := range m.Children {
		if c.Kind == kind && c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// find returns the first node below n matching pred.
func find(n *ir.Node, pred func(*ir.Node) bool) *ir.Node {
	var hit *ir.Node
	ir.Walk(n, func(c *ir.Node) bool {
		if hit == nil && pred(c) {
			hit = c
		}
		return hit == nil
	})
	return hit
}

func identNamed(name string) func(*ir.Node) bool {
	return func(n *ir.Node) bool { return n.Kind == ir.KindIdent && n.Name == name }
}

func TestUnifyAcrossLanguages(t *testing.T) {
	res := unify(t,
		fixture{"geometry.py", "", "def area(r):\n    return r * r\n"},
		fixture{"main.go", "", "package main\n\nimport (\n\t\"fmt\"\n\t\"geometry\"\n)\n\nfunc main() {\n\tfmt.Println(geometry.area(2))\n}\n"},
	)
	require.Empty(t, res.Diags, res.Diags.Format())

	prog := res.Program
	assert.Equal(t, ir.KindProgram, prog.Kind)
	require.Len(t, prog.Children, 2)
	assert.Equal(t, "geometry", prog.Children[0].Name)
	assert.Equal(t, "main", prog.Children[1].Name)

	area := declNamed(prog.Children[0], ir.KindFunc, "area")
	require.Len(t, area, 1)
	assert.Equal(t, "geometry.area", area[0].Ref)
	r := find(area[0], identNamed("r"))
	require.NotNil(t, r)
	assert.Empty(t, r.Ref, "parameters stay local")

	main := prog.Children[1]
	callee := find(main, identNamed("area"))
	require.NotNil(t, callee, "geometry.area should become a direct reference")
	assert.Equal(t, "geometry.area", callee.Ref)
	assert.Nil(t, find(main, func(n *ir.Node) bool { return n.Kind == ir.KindSelector }))

	imports := declNamed(main, ir.KindImport, "fmt")
	require.Len(t, imports, 1)
	assert.Equal(t, "extern:fmt", imports[0].Ref)
	geo := declNamed(main, ir.KindImport, "geometry")
	require.Len(t, geo, 1)
	assert.Empty(t, geo[0].Ref, "program module imports carry no extern ref")
}

func TestIncompatibleDeclarationsConflictOnce(t *testing.T) {
	res := unify(t,
		fixture{"a.py", "shared", "def foo(a, b):\n    return a\n"},
		fixture{"b.js", "shared", "function foo(a) { return a; }\n"},
	)
	conflicts := res.Diags.ByCode(diag.CodeConflict)
	require.Len(t, conflicts, 1, res.Diags.Format())

	c := conflicts[0]
	assert.Equal(t, diag.Error, c.Severity)
	assert.Equal(t, diag.KindConflict, c.Kind)
	assert.Equal(t, "a.py", c.Pos.File)
	require.Len(t, c.Related, 1)
	assert.Equal(t, "b.js", c.Related[0].File)
	assert.Contains(t, c.Message, "shared.foo")
	assert.Contains(t, c.Message, "python func foo(any, any)")
	assert.Contains(t, c.Message, "javascript func foo(any)")

	// first declared still wins
	foo := declNamed(moduleNamed(t, res.Program, "shared"), ir.KindFunc, "foo")
	require.Len(t, foo, 1)
	assert.Equal(t, source.Python, foo[0].Lang)
}

func TestConflictSetIndependentOfOrder(t *testing.T) {
	fixtures := []fixture{
		{"a.py", "m", "def foo(x):\n    return x\nlimit = 1\n"},
		{"b.go", "m", "package m\n\nfunc foo(x, y int) int {\n\treturn x\n}\n\nvar limit string = \"x\"\n"},
		{"c.js", "m", "function foo(z) { return z; }\nlet limit = 2;\n"},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	conflictSet := func(order []int) []string {
		fx := make([]fixture, len(order))
		for i, j := range order {
			fx[i] = fixtures[j]
		}
		res := unify(t, fx...)
		var out []string
		for _, d := range res.Diags.ByCode(diag.CodeConflict).Sorted() {
			out = append(out, d.String())
		}
		return out
	}

	want := conflictSet(perms[0])
	// foo: (a,b) and (b,c) differ in arity; limit: int vs string twice.
	require.Len(t, want, 4)
	for _, p := range perms[1:] {
		assert.Equal(t, want, conflictSet(p), "order %v", p)
	}
}

func TestFirstDeclaredWinsWithShadowWarning(t *testing.T) {
	py := fixture{"a.py", "m", "def foo(x):\n    return 1\n"}
	js := fixture{"b.js", "m", "function foo(y) { return 2; }\n"}

	res := unify(t, py, js)
	assert.False(t, res.Diags.HasErrors(), res.Diags.Format())
	warnings := res.Diags.ByCode(diag.CodeShadowed)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.Warning, warnings[0].Severity)
	assert.Equal(t, "b.js", warnings[0].Pos.File)
	assert.Equal(t, []source.Pos{{File: "a.py", Line: 1, Col: 1}}, warnings[0].Related)

	foo := declNamed(res.Program.Children[0], ir.KindFunc, "foo")
	require.Len(t, foo, 1)
	assert.Equal(t, source.Python, foo[0].Lang)

	res = unify(t, js, py)
	foo = declNamed(res.Program.Children[0], ir.KindFunc, "foo")
	require.Len(t, foo, 1)
	assert.Equal(t, source.JavaScript, foo[0].Lang)
	require.Len(t, res.Diags.ByCode(diag.CodeShadowed), 1)
	assert.Equal(t, "a.py", res.Diags.ByCode(diag.CodeShadowed)[0].Pos.File)
}

func TestUnresolvedReference(t *testing.T) {
	res := unify(t, fixture{"a.py", "", "def f():\n    return missing(1)\n"})
	errs := res.Diags.ByCode(diag.CodeUnresolved)
	require.Len(t, errs, 1)
	assert.Equal(t, source.Pos{File: "a.py", Line: 2, Col: 12}, errs[0].Pos)
	assert.Contains(t, errs[0].Message, `"missing"`)
}

func TestUnresolvedQualifiedMember(t *testing.T) {
	res := unify(t,
		fixture{"lib.py", "", "def f():\n    return 1\n"},
		fixture{"main.js", "", "import * as lib from \"./lib.js\";\nconsole.log(lib.g());\n"},
	)
	errs := res.Diags.ByCode(diag.CodeUnresolved)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `"lib.g"`)
}

func TestAliasCycle(t *testing.T) {
	res := unify(t,
		fixture{"a.py", "", "from b import x\n"},
		fixture{"b.py", "", "from a import x\n"},
	)
	cycles := res.Diags.ByCode(diag.CodeAliasCycle)
	require.Len(t, cycles, 1, res.Diags.Format())
	assert.Contains(t, cycles[0].Message, "a.x -> b.x -> a.x")
	assert.Empty(t, res.Diags.ByCode(diag.CodeUnresolved))
}

func TestAliasResolution(t *testing.T) {
	res := unify(t,
		fixture{"geometry.py", "", "def area(r):\n    return r * r\n"},
		fixture{"shapes.py", "", "from geometry import area\n"},
		fixture{"main.py", "", "from shapes import area as a\nprint(a(2))\n"},
	)
	require.Empty(t, res.Diags, res.Diags.Format())

	call := find(moduleNamed(t, res.Program, "main"), func(n *ir.Node) bool { return n.Kind == ir.KindCall })
	require.NotNil(t, call)
	assert.Equal(t, "geometry.area", call.Callee().Ref)

	order, cycles := res.Symbols.Order()
	require.Empty(t, cycles)
	var names []string
	for _, s := range order {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"geometry.area", "shapes.area", "main.a"}, names)
}

func TestDanglingAlias(t *testing.T) {
	res := unify(t,
		fixture{"geometry.py", "", "def area(r):\n    return r\n"},
		fixture{"main.py", "", "from geometry import volume\n"},
	)
	errs := res.Diags.ByCode(diag.CodeUnresolved)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `"geometry.volume"`)
	assert.Equal(t, "main.py", errs[0].Pos.File)
}

func TestScoping(t *testing.T) {
	t.Run("python locals are function scoped", func(t *testing.T) {
		res := unify(t, fixture{"a.py", "", "def f(c):\n    if c:\n        y = 1\n    else:\n        y = 2\n    return y\n"})
		assert.Empty(t, res.Diags, res.Diags.Format())
	})
	t.Run("javascript locals are block scoped", func(t *testing.T) {
		res := unify(t, fixture{"a.js", "", "function f(c) {\n  if (c) {\n    let y = 1;\n  }\n  return y;\n}\n"})
		errs := res.Diags.ByCode(diag.CodeUnresolved)
		require.Len(t, errs, 1)
		assert.Equal(t, 5, errs[0].Pos.Line)
	})
	t.Run("locals shadow module names", func(t *testing.T) {
		res := unify(t, fixture{"a.go", "", "package a\n\nvar n = 1\n\nfunc f() int {\n\tn := 2\n\treturn n\n}\n\nfunc g() int {\n\treturn n\n}\n"})
		require.Empty(t, res.Diags, res.Diags.Format())
		m := res.Program.Children[0]
		f := declNamed(m, ir.KindFunc, "f")[0]
		g := declNamed(m, ir.KindFunc, "g")[0]
		assert.Empty(t, find(f.Body(), identNamed("n")).Ref)
		assert.Equal(t, "a.n", find(g.Body(), identNamed("n")).Ref)
	})
	t.Run("module assignment", func(t *testing.T) {
		res := unify(t, fixture{"a.py", "", "count = 0\ncount = count + 1\n"})
		require.Empty(t, res.Diags, res.Diags.Format())
		assign := find(res.Program, func(n *ir.Node) bool { return n.Kind == ir.KindAssign })
		assert.Equal(t, "a.count", assign.Ref)
	})
}

func TestExternsAndBuiltins(t *testing.T) {
	res := unify(t, fixture{"calc.py", "", "import math\nfrom os import path as p\n\ndef g():\n    return math.floor(abs(p))\n"})
	require.Empty(t, res.Diags, res.Diags.Format())

	m := res.Program.Children[0]
	math := find(m, identNamed("math"))
	assert.Equal(t, "extern:math", math.Ref)
	assert.Equal(t, source.Python, math.Lang)
	assert.True(t, math.IsExtern())

	assert.Equal(t, "extern:os.path", find(m, identNamed("p")).Ref)

	abs := find(m, identNamed("abs"))
	assert.Equal(t, "builtin:abs", abs.Ref)
	assert.True(t, abs.IsBuiltin())
}

func TestModuleUsedAsValue(t *testing.T) {
	res := unify(t,
		fixture{"lib.py", "", "x = 1\n"},
		fixture{"main.py", "", "import lib\nprint(lib)\n"},
	)
	errs := res.Diags.ByCode(diag.CodeUnresolved)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "module lib is used as a value")
}

func TestImportsAreDeduplicated(t *testing.T) {
	res := unify(t,
		fixture{"a.py", "calc", "import math\n\ndef f():\n    return math.pi\n"},
		fixture{"b.py", "calc", "import math\n\ndef g():\n    return math.e\n"},
	)
	require.Empty(t, res.Diags, res.Diags.Format())
	m := res.Program.Children[0]
	assert.Len(t, declNamed(m, ir.KindImport, "math"), 1)
	assert.Len(t, m.Children, 3)
}

func TestModulesMergeAcrossUnits(t *testing.T) {
	res := unify(t,
		fixture{"one.py", "lib", "def f():\n    return g()\n"},
		fixture{"two.js", "lib", "function g() { return 1; }\n"},
	)
	require.Empty(t, res.Diags, res.Diags.Format())
	require.Len(t, res.Program.Children, 1)
	assert.Equal(t, "lib.g", find(res.Program, identNamed("g")).Ref)
	assert.Equal(t, 2, res.Symbols.Len())
}

func TestGoInitFunctionsAreAllKept(t *testing.T) {
	res := unify(t,
		fixture{"one.go", "app", "package app\n\nimport \"fmt\"\n\nfunc init() {\n\tfmt.Println(\"one\")\n}\n"},
		fixture{"two.go", "app", "package app\n\nimport \"fmt\"\n\nfunc init() {\n\tfmt.Println(\"two\")\n}\n\nfunc init() {\n\tfmt.Println(\"three\")\n}\n"},
	)
	require.Empty(t, res.Diags, res.Diags.Format())
	assert.Empty(t, res.Diags.ByCode(diag.CodeShadowed))

	inits := declNamed(moduleNamed(t, res.Program, "app"), ir.KindFunc, "init")
	require.Len(t, inits, 3)
	var printed []string
	for _, fn := range inits {
		lit := find(fn, func(n *ir.Node) bool { return n.Kind == ir.KindString })
		require.NotNil(t, lit)
		printed = append(printed, lit.Value)
	}
	assert.Equal(t, []string{"one", "two", "three"}, printed)
	assert.Zero(t, res.Symbols.Len())
}
