package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replRift = `@rift geo { @target "py" @fuse "python" geometry { "def area(w: int, h: int) -> int:\n    return w * h\n" } @fuse "go" main { "package main\n\nimport (\n\t\"fmt\"\n\t\"geometry\"\n)\n\nfunc main() {\n\tfmt.Println(geometry.area(2, 3))\n}\n" } }`

// runSession runs the repl over lines and returns stdout and stderr.
func runSession(t *testing.T, opts *RootOptions, args []string, lines ...string) (string, string) {
	t.Helper()
	cmd := NewReplCommand(opts)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String(), errOut.String()
}

func TestReplSession(t *testing.T) {
	opts := testRoot(t, "text")
	stdout, stderr := runSession(t, opts, []string{"--no-cache"},
		"help",
		replRift,
		`@task web { @target "js" call geo; }`,
		"status",
		"call web;",
		"call nothing;",
		"@rift broken {",
		"clear",
		"status",
		"exit",
		"call web;",
	)

	assert.Contains(t, stdout, "Input forms:")
	assert.Contains(t, stdout, "rifts: 1 (geo)\ntasks: 1 (web)\ntargets: go (config)\nruns: 0, artifacts written: 0\n")
	assert.Equal(t, 1, strings.Count(stdout, "fused 2 unit(s) into 1 artifact(s)"), "input after exit is not read")
	assert.Contains(t, stdout, "session cleared")
	assert.Contains(t, stdout, "rifts: 0\ntasks: 0\ntargets: go (config)\nruns: 1, artifacts written: 1\n")

	assert.Contains(t, stderr, `call to unknown rift or task "nothing"`)
	assert.Contains(t, stderr, "<input 4>:1:1")
	assert.Contains(t, stderr, "hint: type help for the input forms")

	js, err := os.ReadFile(filepath.Join(opts.Config.OutDir, "geo.js"))
	require.NoError(t, err)
	assert.Contains(t, string(js), "console.log(6)")
}

func TestReplTargetsAndForcedOptimizer(t *testing.T) {
	opts := testRoot(t, "text")
	stdout, stderr := runSession(t, opts, []string{"--no-cache", "--no-optimize"},
		replRift,
		`@target "cobol"`,
		`@target "go"`,
		"status",
		"call geo;",
		"call optimize with geo;",
	)
	assert.Contains(t, stderr, "Error: ")
	assert.Contains(t, stderr, "cobol")
	assert.Contains(t, stdout, "targets: go\n")
	assert.Equal(t, 2, strings.Count(stdout, "fused 2 unit(s) into 2 artifact(s)"))

	goOut, err := os.ReadFile(filepath.Join(opts.Config.OutDir, "geo.go"))
	require.NoError(t, err)
	assert.Contains(t, string(goOut), "fmt.Println(6)", "the last call forced the optimizer")
	py, err := os.ReadFile(filepath.Join(opts.Config.OutDir, "geo.py"))
	require.NoError(t, err)
	assert.Contains(t, string(py), "print(6)")
}

func TestReplEndsAtEOF(t *testing.T) {
	stdout, stderr := runSession(t, testRoot(t, "text"), nil)
	assert.Contains(t, stdout, "rift> ")
	assert.Empty(t, stderr)
}
