package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

const shapes = `// two fragments, one target
@rift shapes {
  @target "go"
  @target "py";
  @fuse "python" geometry { "def area(r):\n" "    return r * r\n" }
  @fuse "js" from "lib/util.js"
}
`

func TestParseManifest(t *testing.T) {
	m, diags := Parse("shapes.rift", []byte(shapes))
	require.Empty(t, diags)
	require.Len(t, m.Rifts, 1)

	r := m.Rifts[0]
	assert.Equal(t, "shapes", r.Name)
	assert.Equal(t, source.Pos{File: "shapes.rift", Line: 2, Col: 1}, r.Pos)
	assert.Equal(t, []source.Language{source.Go, source.Python}, r.Targets)
	require.Len(t, r.Fuses, 2)

	assert.Equal(t, source.Python, r.Fuses[0].Lang)
	assert.Equal(t, "geometry", r.Fuses[0].Module)
	assert.Equal(t, "def area(r):\n    return r * r\n", r.Fuses[0].Code)
	assert.Equal(t, 5, r.Fuses[0].Pos.Line)

	assert.Equal(t, source.JavaScript, r.Fuses[1].Lang)
	assert.Equal(t, "lib/util.js", r.Fuses[1].From)
	assert.Empty(t, r.Fuses[1].Module)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		line     int
		col      int
		contains string
	}{
		{"missing name", `@rift { }`, 1, 7, "expected identifier, found \"{\""},
		{"unknown directive", "@rift a {\n  @deploy \"x\"\n}", 2, 3, "expected @target, @fuse or }"},
		{"unknown language", "@rift a {\n  @fuse \"cobol\" { \"x\" }\n}", 2, 9, "expected a language"},
		{"unterminated string", "@rift a {\n  @fuse \"python\" { \"x }\n}", 2, 20, "unterminated string"},
		{"bad escape", `@rift a { @fuse "python" { "\q" } }`, 1, 28, `illegal "\\q"`},
		{"missing body", `@rift a { @fuse "python" ; }`, 1, 26, "expected { or from"},
		{"unclosed rift", `@rift a { @fuse "python" { "x" }`, 1, 33, "expected } closing @rift a, found end of file"},
		{"stray token", `fuse`, 1, 1, "expected @rift"},
		{"empty rift", `@rift a { }`, 1, 1, "expected at least one @fuse"},
		{"empty task", "@rift a { @fuse \"go\" { \"\" } }\n@task t { @target \"py\" }", 2, 1, "expected at least one call"},
		{"call without semicolon", "@rift a { @fuse \"go\" { \"\" } }\ncall a", 2, 7, "expected ;, found end of file"},
		{"unknown action", "@rift a { @fuse \"go\" { \"\" } }\ncall deploy with a;", 2, 6, "expected an action (optimize)"},
		{"unknown call", "@rift a { @fuse \"go\" { \"\" } }\n@task t { call b; }", 2, 11, `call to unknown rift or task "b"`},
		{"task cycle", "@rift a { @fuse \"go\" { \"\" } }\n@task t { call u; }\n@task u { call t; }", 2, 1, "task cycle: t -> u -> t"},
		{"task named like a rift", "@rift a { @fuse \"go\" { \"\" } }\n@task a { call a; }", 2, 1, `duplicate task "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, diags := Parse("x.rift", []byte(tt.src))
			assert.Nil(t, m)
			require.True(t, diags.HasErrors())
			d := diags.Errors()[0]
			assert.Equal(t, diag.CodeManifest, d.Code)
			assert.Equal(t, diag.KindParse, d.Kind)
			assert.Equal(t, tt.line, d.Pos.Line, d.String())
			assert.Equal(t, tt.col, d.Pos.Col, d.String())
			assert.Contains(t, d.Message, tt.contains)
		})
	}
}

func TestDuplicateRift(t *testing.T) {
	src := "@rift a { @fuse \"go\" { \"\" } }\n@rift a { @fuse \"go\" { \"\" } }\n"
	_, diags := Parse("dup.rift", []byte(src))
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, `duplicate rift "a"`)
	assert.Equal(t, []source.Pos{{File: "dup.rift", Line: 1, Col: 1}}, diags[0].Related)
}

func TestRiftSelection(t *testing.T) {
	src := "@rift a { @fuse \"go\" { \"\" } }\n@rift b { @fuse \"go\" { \"\" } }\n"
	m, diags := Parse("two.rift", []byte(src))
	require.Empty(t, diags)

	_, err := m.Rift("")
	assert.ErrorContains(t, err, "2 rifts defined")

	r, err := m.Rift("b")
	require.NoError(t, err)
	assert.Equal(t, "b", r.Name)

	_, err = m.Rift("c")
	assert.ErrorContains(t, err, `no rift named "c"`)
}

func TestUnits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "util.js"), []byte("let k = 1;\n"), 0o644))
	path := filepath.Join(dir, "shapes.rift")
	require.NoError(t, os.WriteFile(path, []byte(shapes), 0o644))

	m, diags, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, diags)

	units, err := m.Rifts[0].Units(path)
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, path+"#shapes.1.py", units[0].Path())
	assert.Equal(t, "geometry", units[0].Module())
	assert.Equal(t, source.Python, units[0].Lang())

	assert.Equal(t, filepath.Join(dir, "lib", "util.js"), units[1].Path())
	assert.Equal(t, "shapes", units[1].Module())
	assert.Equal(t, "let k = 1;\n", units[1].Text())
}

func TestUnitsMissingFile(t *testing.T) {
	m, diags := Parse("/nowhere/m.rift", []byte(`@rift a { @fuse "go" from "gone.go" }`))
	require.Empty(t, diags)
	_, err := m.Rifts[0].Units(m.Path)
	assert.ErrorContains(t, err, "gone.go")
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "none.rift"))
	assert.ErrorContains(t, err, "read manifest")
}

const tasks = `@rift shapes {
  @target "go"
  @fuse "python" { "x = 1\n" }
}

@rift util {
  @fuse "js" { "let y = 2;\n" }
}

@task native {
  @target "rust"
  call optimize with shapes;
  call util;
}

@task all {
  @target "python"
  call native;
  call shapes;
}

call shapes;
call native;
call optimize with util;
`

func TestParseTasksAndCalls(t *testing.T) {
	m, diags := Parse("tasks.rift", []byte(tasks))
	require.Empty(t, diags, diags.Format())
	require.Len(t, m.Tasks, 2)

	native := m.Tasks[0]
	assert.Equal(t, "native", native.Name)
	assert.Equal(t, []source.Language{source.Rust}, native.Targets)
	assert.Equal(t, []*Call{
		{Name: "shapes", Action: ActionOptimize, Pos: source.Pos{File: "tasks.rift", Line: 12, Col: 3}},
		{Name: "util", Pos: source.Pos{File: "tasks.rift", Line: 13, Col: 3}},
	}, native.Calls)

	require.Len(t, m.Calls, 3)
	assert.Equal(t, "shapes", m.Calls[0].Name)
	assert.Equal(t, ActionOptimize, m.Calls[2].Action)
	assert.Equal(t, "util", m.Calls[2].Name)
}

type planned struct {
	Rift     string
	Targets  []source.Language
	Optimize bool
	Task     string
}

func plan(t *testing.T, m *Manifest, name string) []planned {
	t.Helper()
	runs, err := m.Plan(name)
	require.NoError(t, err)
	out := make([]planned, len(runs))
	for i, r := range runs {
		out[i] = planned{r.Rift.Name, r.Targets, r.Optimize, r.Task}
	}
	return out
}

func TestPlan(t *testing.T) {
	m, diags := Parse("tasks.rift", []byte(tasks))
	require.Empty(t, diags, diags.Format())

	golang, rust, py := source.Go, source.Rust, source.Python
	assert.Equal(t, []planned{
		{"shapes", []source.Language{golang}, false, ""},
		{"shapes", []source.Language{rust}, true, "native"},
		{"util", []source.Language{rust}, false, "native"},
		{"util", nil, true, ""},
	}, plan(t, m, ""), "top-level calls")

	assert.Equal(t, []planned{
		{"shapes", []source.Language{rust}, true, "native"},
		{"util", []source.Language{rust}, false, "native"},
		{"shapes", []source.Language{py}, false, "all"},
	}, plan(t, m, "all"), "the task nearest the rift picks the targets")

	assert.Equal(t, []planned{{"util", nil, false, ""}}, plan(t, m, "util"))

	_, err := m.Plan("missing")
	assert.ErrorContains(t, err, `no rift named "missing"`)
}

func TestPlanWithoutCalls(t *testing.T) {
	m, diags := Parse("one.rift", []byte(shapes))
	require.Empty(t, diags)
	runs, err := m.Plan("")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "shapes", runs[0].Rift.Name)
	assert.Equal(t, []source.Language{source.Go, source.Python}, runs[0].Targets)
}

func TestMergeFragments(t *testing.T) {
	base, diags := ParseFragment("session", []byte(`@rift a { @target "go" @fuse "python" { "x = 1" } } @task t { call a; }`))
	require.Empty(t, diags)

	call, diags := ParseFragment("session", []byte(`call t;`))
	require.Empty(t, diags, "a fragment may call what it does not define")
	errs := call.Check()
	require.Len(t, errs, 1, "calls are checked against the merged definitions")
	assert.Contains(t, errs[0].Message, `call to unknown rift or task "t"`)

	redefined, diags := ParseFragment("session", []byte(`@rift a { @target "js" @fuse "python" { "x = 2" } }`))
	require.Empty(t, diags)

	m := base.Merge(redefined).Merge(call)
	require.Empty(t, m.Check())
	require.Len(t, m.Rifts, 1)
	assert.Equal(t, "x = 2", m.Rifts[0].Fuses[0].Code)
	runs, err := m.Plan("")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []source.Language{source.JavaScript}, runs[0].Targets)
	assert.Equal(t, "t", runs[0].Task)

	clash, diags := ParseFragment("session", []byte(`@task a { call t; }`))
	require.Empty(t, diags)
	errs = m.Merge(clash).Check()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `duplicate task "a"`)
}
