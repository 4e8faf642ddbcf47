package emit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/rift/internal/adapter"
	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
	"github.com/roach88/rift/internal/unify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fuse adapts and unifies (path, source) pairs into a named program.
func fuse(t *testing.T, name string, files ...string) *ir.Node {
	t.Helper()
	require.True(t, len(files)%2 == 0)
	units := make([]*source.Unit, 0, len(files)/2)
	for i := 0; i < len(files); i += 2 {
		lang, ok := source.DetectLanguage(files[i])
		require.True(t, ok, files[i])
		units = append(units, source.NewUnit(files[i], lang, "", []byte(files[i+1])))
	}
	frags, diags, err := adapter.DefaultRegistry().ParseAll(context.Background(), units, adapter.Options{})
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Format())
	res := unify.Unify(frags, unify.Options{})
	require.False(t, res.Diags.HasErrors(), res.Diags.Format())
	res.Program.Name = name
	return res.Program
}

var shapes = []string{
	"geometry.py", `SIDES = 4


def area(w: int, h: int) -> int:
    return w * h


def label(n: int) -> str:
    if n > 10:
        return "big"
    return "small"
`,
	"util.js", `function banner() {
  return "shapes";
}
`,
	"main.go", `package main

import (
	"fmt"
	"geometry"
	"util"
)

func main() {
	a := geometry.area(3, geometry.SIDES)
	fmt.Println(util.banner(), geometry.label(a), a)
}
`,
}

const stats = `LIMIT = 3
NAME = "rift"


def clamp(x: int) -> int:
    if x > LIMIT:
        return LIMIT
    return x


def greet(times: int):
    i = 0
    while i < times:
        print(NAME + "!", clamp(i), len(NAME))
        i = i + 1


greet(5)
`

func TestGoldenTargets(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	reg := DefaultRegistry()

	prog := fuse(t, "shapes", shapes...)
	for _, target := range []source.Language{source.Python, source.JavaScript, source.Go} {
		t.Run(string(target), func(t *testing.T) {
			e, err := reg.For(target)
			require.NoError(t, err)
			a, err := e.Emit(prog)
			require.NoError(t, err)
			assert.Equal(t, "shapes"+target.Ext(), a.FileName)
			assert.Equal(t, ir.ContentHash(ir.DomainArtifact, []byte(a.Text)), a.Hash)
			g.Assert(t, "shapes_"+string(target), []byte(a.Text))
		})
	}

	t.Run("rust", func(t *testing.T) {
		a, err := Rust{}.Emit(fuse(t, "stats", "stats.py", stats))
		require.NoError(t, err)
		assert.Equal(t, "stats.rs", a.FileName)
		g.Assert(t, "stats_rust", []byte(a.Text))
	})
}

func TestEmitDoesNotModifyProgram(t *testing.T) {
	prog := fuse(t, "shapes", shapes...)
	before := ir.MustFingerprint(prog)
	for _, target := range DefaultRegistry().Targets() {
		e, err := DefaultRegistry().For(target)
		require.NoError(t, err)
		_, _ = e.Emit(prog)
	}
	assert.Equal(t, before, ir.MustFingerprint(prog))
	require.NoError(t, ir.CheckOwnership(prog))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		emitter Emitter
		path    string
		src     string
	}{
		{"python", Python{}, "sample.py", `import math
from os import path as p

LIMIT: int = 10
names = "a\tb\"c"


def hyp(x: float, y: float) -> float:
    return math.sqrt(x ** 2 + y ** 2)


def count(n):
    global LIMIT
    total = 0
    while total < n and not total > LIMIT:
        total = total + 1
        if total % 2 == 0:
            pass
        elif total == 3:
            print("three", -total)
        else:
            LIMIT = LIMIT - 1
    return total


print(count(len(names)), hyp(3.0, 4.0), 1 - (2 - 3), 2 ** -1, None, True)
print(abs(-2), (1 < 2) == True, -(2 ** 2))
`},
		{"javascript", JavaScript{}, "sample.js", `import * as fs from "fs";
import { join as j, sep } from "path";
import "./polyfill.js";

const base = 10;
let label;

function scale(x, factor) {
  let result = x * factor;
  if (result > base) {
    result = base;
  } else if (result < 0) {
    result = -result;
  }
  return result;
}

function describe(s) {
  return s.length + (-2) ** 2;
}

let i = 0;
while (i < 3) {
  i++;
  console.log(scale(i, 4), describe("abc"), j("a", sep), fs, null, !true);
}
label = "done\n";
`},
		{"go", Golang{}, "sample.go", `package main

import (
	"fmt"
	str "strings"
)

const scale = 2

var greeting string = "hi"

func area(w, h int) int {
	return w * h * scale
}

func classify(n int) string {
	if n < 0 {
		return "neg"
	} else if n == 0 {
		return "zero"
	} else {
		return "pos"
	}
}

func spin() int {
	for {
		return 1
	}
}

func main() {
	total := 0
	var count int
	var ratio float64 = 1.5
	for count < 3 {
		total += area(count, 2)
		count++
	}
	{
		inner := total - -1
		_ = inner
	}
	fmt.Println(classify(total), len(greeting), -total, !(total > 3), str.ToUpper(greeting), ratio, spin())
}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := fuse(t, "sample", tt.path, tt.src)
			want := ir.MustFingerprint(prog)

			a, err := tt.emitter.Emit(prog)
			require.NoError(t, err)
			again := fuse(t, "sample", tt.path, a.Text)
			assert.Equal(t, want, ir.MustFingerprint(again), "emitted:\n%s", a.Text)

			b, err := tt.emitter.Emit(again)
			require.NoError(t, err)
			assert.Equal(t, a.Text, b.Text)
		})
	}
}

func TestCollidingNamesAreQualified(t *testing.T) {
	prog := fuse(t, "dup",
		"a.py", "def helper():\n    return 1\n",
		"b.py", "def helper():\n    return 2\n",
		"c.py", "import a\nimport b\n\nprint(a.helper(), b.helper())\n",
	)
	a, err := Python{}.Emit(prog)
	require.NoError(t, err)
	assert.Equal(t, `# Code generated by rift. DO NOT EDIT.

def a_helper():
    return 1

def b_helper():
    return 2

print(a_helper(), b_helper())
`, a.Text)
}

func TestLocalsDoNotCaptureGlobals(t *testing.T) {
	prog := fuse(t, "capture",
		"a.py", "x = 10\n",
		"b.py", "from a import x as y\n\n\ndef g():\n    x = 1\n    return x + y\n\n\nprint(g())\n",
	)
	tests := []struct {
		emitter Emitter
		want    []string
	}{
		{Python{}, []string{"a_x = 10\n", "    x = 1\n    return x + a_x\n"}},
		{JavaScript{}, []string{"let a_x = 10;", "  let x = 1;\n  return x + a_x;\n"}},
		{Golang{}, []string{"var a_x = 10", "\tx := 1\n\treturn x + a_x\n"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.emitter.Target()), func(t *testing.T) {
			a, err := tt.emitter.Emit(prog)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, a.Text, want)
			}
			assert.NotContains(t, a.Text, "x + x")
		})
	}
}

func TestParamsDoNotCaptureFunctions(t *testing.T) {
	prog := fuse(t, "calls",
		"lib.py", "def step(n: int) -> int:\n    return n + 1\n",
		"app.py", "from lib import step as advance\n\n\ndef run(step: int) -> int:\n    return advance(step)\n",
	)
	a, err := Python{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, a.Text, "def lib_step(n: int) -> int:")
	assert.Contains(t, a.Text, "def run(step: int) -> int:\n    return lib_step(step)\n")
}

func TestKeywordsAreEscaped(t *testing.T) {
	prog := fuse(t, "kw", "kw.py", "def var(func):\n    return func\n\n\nprint(var(1))\n")

	js, err := JavaScript{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, js.Text, "function var_(func) {\n  return func;\n}")
	assert.Contains(t, js.Text, "console.log(var_(1));")

	goSrc, err := Golang{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, goSrc.Text, "func var_(func_ any) any {\n\treturn func_\n}")
	assert.Contains(t, goSrc.Text, "func main() {\n\tfmt.Println(var_(1))\n}")
}

func TestForeignMainIsNotTheGoEntryPoint(t *testing.T) {
	prog := fuse(t, "app", "app.py", "def main():\n    print(1)\n\n\nmain()\n")
	a, err := Golang{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, a.Text, "func main_() {")
	assert.Contains(t, a.Text, "func main() {\n\tmain_()\n}")
}

func TestEveryGoInitIsEmitted(t *testing.T) {
	var frags []*adapter.Fragment
	for _, src := range []string{
		"package app\n\nimport \"fmt\"\n\nfunc init() {\n\tfmt.Println(1)\n}\n",
		"package app\n\nimport \"fmt\"\n\nfunc init() {\n\tfmt.Println(2)\n}\n\nfunc main() {\n\tfmt.Println(3)\n}\n",
	} {
		unit := source.NewUnit("app.go", source.Go, "app", []byte(src))
		root, diags := adapter.Golang{}.Parse(context.Background(), unit)
		require.False(t, diags.HasErrors(), diags.Format())
		frags = append(frags, &adapter.Fragment{Unit: unit, Root: root})
	}
	res := unify.Unify(frags, unify.Options{})
	require.Empty(t, res.Diags, res.Diags.Format())
	res.Program.Name = "app"

	g, err := Golang{}.Emit(res.Program)
	require.NoError(t, err)
	assert.Contains(t, g.Text, "func init() {\n\tfmt.Println(1)\n}\n\nfunc init() {\n\tfmt.Println(2)\n}\n")

	py, err := Python{}.Emit(res.Program)
	require.NoError(t, err)
	assert.Contains(t, py.Text, "def app_init():\n    print(1)\n")
	assert.Contains(t, py.Text, "def app_init_2():\n    print(2)\n")
	assert.True(t, strings.HasSuffix(py.Text, "\napp_init()\napp_init_2()\nmain()\n"), py.Text)

	js, err := JavaScript{}.Emit(res.Program)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(js.Text, "\napp_init();\napp_init_2();\nmain();\n"), js.Text)
}

func TestGoLibraryPackage(t *testing.T) {
	prog := fuse(t, "geo-kit", "geo.go", "package geo\n\nfunc Double(v int) int {\n\treturn v * 2\n}\n")
	a, err := Golang{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, a.Text, "package geokit\n")
	assert.NotContains(t, a.Text, "func main")
}

func TestGoOperandsWithStaticTypes(t *testing.T) {
	prog := fuse(t, "typed", "t.py", `LIMIT = 3


def same(a, b):
    return a == b


def scale(n: int) -> int:
    m = n
    return m * LIMIT + len("ab")


print(same(1, 2), scale(2) > 4)
`)
	a, err := Golang{}.Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, a.Text, "func same(a any, b any) any {\n\treturn a == b\n}")
	assert.Contains(t, a.Text, "\tm := n\n\treturn m * LIMIT + len(\"ab\")\n")
	assert.Contains(t, a.Text, "scale(2) > 4")
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name      string
		emitter   Emitter
		files     []string
		construct string
	}{
		{"power in go", Golang{}, []string{"p.py", "x = 2 ** 3\n"}, "operator **"},
		{"go dynamic operands", Golang{}, []string{"a.py", "def area(w, h):\n    return w * h\n"}, "operator * on a dynamic value"},
		{"go dynamic result", Golang{}, []string{"a.py", "def one():\n    return 1\n\n\nprint(one() + 1)\n"}, "operator + on a dynamic value"},
		{"go dynamic local", Golang{}, []string{"a.js", "function f(x) {\n  let y = x;\n  return -y;\n}\n"}, "operator - on a dynamic value"},
		{"power in rust", Rust{}, []string{"p.py", "x: int = 2\n\n\ndef f(y: int) -> int:\n    return y ** 2\n"}, "operator **"},
		{"foreign extern", JavaScript{}, []string{"m.py", "import math\n\nprint(math.floor(2.5))\n"}, "external reference math"},
		{"foreign builtin", Golang{}, []string{"m.py", "print(abs(-2))\n"}, "builtin abs"},
		{"untyped rust function", Rust{}, shapes, "function banner"},
		{"rust nil", Rust{}, []string{"n.py", "def f(x: int):\n    y = None\n"}, "nil"},
		{"rust dynamic param", Rust{}, []string{"d.js", "function f(x) {\n  return;\n}\n"}, "parameter x"},
		{"rust mutable global", Rust{}, []string{"g.py", "n = 1\n\n\ndef bump():\n    global n\n    n = n + 1\n"}, "assignment to module variable n"},
		{"rust computed global", Rust{}, []string{"g.py", "def one() -> int:\n    return 1\n\n\nn = one()\n"}, "module variable n"},
		{"rust statements beside main", Rust{}, []string{"m.py", "def main():\n    print(1)\n\n\nprint(2)\n"}, "module-level statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.emitter.Emit(fuse(t, "bad", tt.files...))
			var uc *diag.UnsupportedConstructError
			require.True(t, errors.As(err, &uc), "got %v", err)
			assert.Equal(t, string(tt.emitter.Target()), uc.Target)
			assert.Equal(t, tt.construct, uc.Construct)
			assert.True(t, uc.Pos.IsValid(), "missing position")

			d, ok := diag.AsDiagnostic(err)
			require.True(t, ok)
			assert.Equal(t, diag.CodeUnsupported, d.Code)
		})
	}
}

func TestEmitRejectsSharedNodes(t *testing.T) {
	prog := fuse(t, "shared", "s.py", "x = 1\ny = 2\n")
	m := prog.Children[0]
	m.Children[1].Children = m.Children[0].Children
	_, err := Python{}.Emit(prog)
	require.Error(t, err)
	var oe *ir.OwnershipError
	assert.True(t, errors.As(err, &oe))
}

func TestEmitAll(t *testing.T) {
	prog := fuse(t, "shapes", shapes...)
	reg := DefaultRegistry()
	targets := []source.Language{source.Go, source.Python, source.JavaScript}

	arts, err := reg.EmitAll(context.Background(), prog, targets, Options{Parallelism: 2})
	require.NoError(t, err)
	require.Len(t, arts, 3)
	for i, target := range targets {
		assert.Equal(t, target, arts[i].Target)
		e, err := reg.For(target)
		require.NoError(t, err)
		direct, err := e.Emit(prog)
		require.NoError(t, err)
		assert.Equal(t, direct.Text, arts[i].Text)
	}
}

func TestEmitAllFailsOnAnyTarget(t *testing.T) {
	prog := fuse(t, "shapes", shapes...)
	_, err := DefaultRegistry().EmitAll(context.Background(), prog, source.Languages(), Options{})
	var uc *diag.UnsupportedConstructError
	require.True(t, errors.As(err, &uc), "got %v", err)
	assert.Equal(t, "rust", uc.Target)
}

func TestEmitAllHonorsCancellation(t *testing.T) {
	prog := fuse(t, "shapes", shapes...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DefaultRegistry().EmitAll(ctx, prog, []source.Language{source.Python, source.Go}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitAllUsesOverride(t *testing.T) {
	prog := fuse(t, "shapes", shapes...)
	calls := make(chan source.Language, 2)
	opts := Options{Emit: func(_ context.Context, e Emitter, prog *ir.Node) (*Artifact, error) {
		calls <- e.Target()
		return NewArtifact(e.Target(), "cached", "cached"), nil
	}}
	arts, err := DefaultRegistry().EmitAll(context.Background(), prog, []source.Language{source.Python, source.Rust}, opts)
	require.NoError(t, err)
	close(calls)
	assert.Len(t, calls, 2)
	assert.Equal(t, "cached", arts[1].Text)
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []source.Language{source.Go, source.JavaScript, source.Python, source.Rust}, reg.Targets())
	_, err := NewRegistry(Python{}).For(source.Rust)
	assert.ErrorContains(t, err, `no emitter for target "rust"`)
	_, err = reg.EmitAll(context.Background(), fuse(t, "x", "x.py", "x = 1\n"), []source.Language{"cobol"}, Options{})
	assert.ErrorContains(t, err, "no emitter")
}
