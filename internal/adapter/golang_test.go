package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

const goSample = `package geometry

import (
	"fmt"
	m "math"
)

const scale = 2

func Area(r float64) float64 {
	return m.Pi * r * r
}

func main() {
	x := 0
	for x < 3 {
		x++
	}
	if x != 3 {
		fmt.Println("bad")
	} else {
		fmt.Println(len("ok"), Area(1.5))
	}
}
`

func TestGoLowering(t *testing.T) {
	got := mustParse(t, Golang{}, goSample)

	want := module(source.Go,
		imp("fmt", "fmt", "", "fmt"),
		imp("math", "math", "", "m"),
		varDecl("scale", "", num(2)),
		fn("Area", ir.TypeFloat, params(param("r", ir.TypeFloat)),
			ret(bin(ir.OpMul, bin(ir.OpMul, sel(id("m"), "Pi"), id("r")), id("r"))),
		),
		fn("main", "", nil,
			varDecl("x", "", num(0)),
			while(bin(ir.OpLt, id("x"), num(3)), assign("x", bin(ir.OpAdd, id("x"), num(1)))),
			ifStmt(bin(ir.OpNe, id("x"), num(3)),
				block(exprStmt(print_(str("bad")))),
				block(exprStmt(print_(length(str("ok")), call(id("Area"), flt("1.5")))))),
		),
	)
	requireTree(t, want, got)
}

func TestGoParamsAndVars(t *testing.T) {
	src := `package p

var greeting string = "hi\n"

func add(a, b int) (int) {
	var total int
	total = a
	total += b
	for {
		return total
	}
}
`
	got := mustParse(t, Golang{}, src)
	want := module(source.Go,
		varDecl("greeting", ir.TypeString, str("hi\n")),
		fn("add", ir.TypeInt, params(param("a", ir.TypeInt), param("b", ir.TypeInt)),
			varDecl("total", ir.TypeInt, nil),
			assign("total", id("a")),
			assign("total", bin(ir.OpAdd, id("total"), id("b"))),
			while(boolean(true), ret(id("total"))),
		),
	)
	requireTree(t, want, got)
}

func TestGoNestedBlockAndBlankAssignment(t *testing.T) {
	src := "package p\n\nfunc f() {\n\t{\n\t\tx := 1\n\t\t_ = x\n\t}\n}\n"
	got := mustParse(t, Golang{}, src)
	want := module(source.Go,
		fn("f", "", params(),
			block(varDecl("x", "", num(1)), exprStmt(id("x"))),
		),
	)
	requireTree(t, want, got)
}

func TestGoElseIf(t *testing.T) {
	src := "package p\n\nfunc f(x int) int {\n\tif x > 0 {\n\t\treturn 1\n\t} else if x < 0 {\n\t\treturn -1\n\t}\n\treturn 0\n}\n"
	got := mustParse(t, Golang{}, src)
	want := module(source.Go,
		fn("f", ir.TypeInt, params(param("x", ir.TypeInt)),
			ifStmt(bin(ir.OpGt, id("x"), num(0)),
				block(ret(num(1))),
				block(ifStmt(bin(ir.OpLt, id("x"), num(0)), block(ret(neg(num(1)))), nil))),
			ret(num(0)),
		),
	)
	requireTree(t, want, got)
}

func TestGoUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"struct type", "package p\ntype T struct{}\n", "expected import, func, var or const declaration"},
		{"method", "package p\nfunc (t T) M() {}\n", "expected import, func, var or const declaration"},
		{"multiple results", "package p\nfunc f() (int, int) { return 1, 2 }\n", "expected single result"},
		{"for clause", "package p\nfunc f() {\n\tfor i := 0; i < 3; i++ {\n\t}\n}\n", "expected condition-only for loop"},
		{"slice type", "package p\nfunc f(x []int) {}\n", "expected int, float64, string, bool or any type"},
		{"generic", "package p\nfunc f[T any](x T) {}\n", "expected non-generic function"},
		{"dot import", "package p\nimport . \"fmt\"\n", "expected named import"},
		{"bit shift", "package p\nvar x = 1 << 2\n", "expected arithmetic, comparison or logical operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, diags := parse(t, Golang{}, tt.src)
			assert.Nil(t, root)
			require.True(t, diags.HasErrors(), "want an error for %q", tt.src)
			assert.Contains(t, diags.Errors()[0].Message, tt.expected)
		})
	}
}

func TestGoSyntaxErrorPosition(t *testing.T) {
	root, diags := parse(t, Golang{}, "package p\n\nfunc f() {\n\treturn 1 +\n}\n")
	assert.Nil(t, root)
	require.True(t, diags.HasErrors())
	assert.GreaterOrEqual(t, diags.Errors()[0].Pos.Line, 3)
}
