package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

const pySample = `import math
from geometry import area as a

def hyp(x: float, y: float) -> float:
    s = x * x + y * y
    s += 0
    return math.sqrt(s)

total = a(2) + len("abc")
if total > 3:
    print("big", total)
elif total == 0:
    pass
else:
    print(-total)
`

func TestPythonLowering(t *testing.T) {
	got := mustParse(t, Python{}, pySample)

	want := module(source.Python,
		imp("math", "math", "", "math"),
		imp("geometry", "geometry", "area", "a"),
		fn("hyp", ir.TypeFloat, params(param("x", ir.TypeFloat), param("y", ir.TypeFloat)),
			varDecl("s", "", bin(ir.OpAdd, bin(ir.OpMul, id("x"), id("x")), bin(ir.OpMul, id("y"), id("y")))),
			assign("s", bin(ir.OpAdd, id("s"), num(0))),
			ret(call(sel(id("math"), "sqrt"), id("s"))),
		),
		varDecl("total", "", bin(ir.OpAdd, call(id("a"), num(2)), length(str("abc")))),
		ifStmt(bin(ir.OpGt, id("total"), num(3)),
			block(exprStmt(print_(str("big"), id("total")))),
			block(ifStmt(bin(ir.OpEq, id("total"), num(0)),
				block(),
				block(exprStmt(print_(neg(id("total")))))))),
	)
	requireTree(t, want, got)
}

func TestPythonScalarLiterals(t *testing.T) {
	src := `a = 0x1F
b = .5
c = 'it\'s\n'
d = r"\d"
e = not True
f = 1_000
`
	got := mustParse(t, Python{}, src)
	want := module(source.Python,
		varDecl("a", "", num(31)),
		varDecl("b", "", flt("0.5")),
		varDecl("c", "", str("it's\n")),
		varDecl("d", "", str(`\d`)),
		varDecl("e", "", not(boolean(true))),
		varDecl("f", "", num(1000)),
	)
	requireTree(t, want, got)
}

func TestPythonFirstAssignmentDeclaresPerFunction(t *testing.T) {
	src := `count = 0

def bump(n):
    count = n
    count = count + 1
    return count
`
	got := mustParse(t, Python{}, src)
	want := module(source.Python,
		varDecl("count", "", num(0)),
		fn("bump", "", params(param("n", "")),
			varDecl("count", "", id("n")),
			assign("count", bin(ir.OpAdd, id("count"), num(1))),
			ret(id("count")),
		),
	)
	requireTree(t, want, got)
}

func TestPythonGlobalAssignsModuleVariable(t *testing.T) {
	src := `count = 0

def bump():
    global count
    count = count + 1
`
	got := mustParse(t, Python{}, src)
	want := module(source.Python,
		varDecl("count", "", num(0)),
		fn("bump", "", params(),
			assign("count", bin(ir.OpAdd, id("count"), num(1))),
		),
	)
	requireTree(t, want, got)
}

func TestPythonWhile(t *testing.T) {
	src := `def loop():
    i = 0
    while i < 3:
        i = i + 1
    return None
`
	got := mustParse(t, Python{}, src)
	want := module(source.Python,
		fn("loop", "", nil,
			varDecl("i", "", num(0)),
			while(bin(ir.OpLt, id("i"), num(3)), assign("i", bin(ir.OpAdd, id("i"), num(1)))),
			ret(nilLit()),
		),
	)
	requireTree(t, want, got)
}

func TestPythonSyntaxError(t *testing.T) {
	root, diags := parse(t, Python{}, "def f(:\n    return 1\n")
	assert.Nil(t, root)
	require.True(t, diags.HasErrors())
	d := diags.Errors()[0]
	assert.Equal(t, diag.CodeParse, d.Code)
	assert.Equal(t, diag.KindParse, d.Kind)
	assert.Equal(t, "fixture.py", d.Pos.File)
	assert.Equal(t, 1, d.Pos.Line)
	assert.Contains(t, d.Message, "expected")
	assert.Contains(t, d.Message, "found")
}

func TestPythonUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
		found    string
	}{
		{"class", "class A:\n    pass\n", "expected statement", "class_definition"},
		{"fstring", "x = f\"{1}\"\n", "expected plain string literal", "string"},
		{"keyword arg", "print(1, sep=\",\")\n", "expected positional argument", "keyword_argument"},
		{"chained comparison", "x = 1 < 2 < 3\n", "expected single comparison", "comparison_operator"},
		{"bitwise", "x = 1 | 2\n", "expected arithmetic or logical operator", "|"},
		{"list annotation", "def f(x: list) -> int:\n    return 1\n", "expected int, float, str or bool annotation", "list"},
		{"nested function", "def f():\n    def g():\n        pass\n", "functions must be top level", "function_definition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, diags := parse(t, Python{}, tt.src)
			assert.Nil(t, root)
			require.True(t, diags.HasErrors())
			msg := diags.Errors()[0].Message
			assert.Contains(t, msg, tt.expected)
			assert.Contains(t, msg, tt.found)
		})
	}
}

func TestPythonCollectsEveryError(t *testing.T) {
	src := "class A:\n    pass\n\nclass B:\n    pass\n"
	_, diags := parse(t, Python{}, src)
	errs := diags.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, 1, errs[0].Pos.Line)
	assert.Equal(t, 4, errs[1].Pos.Line)
}
