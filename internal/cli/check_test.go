package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPrintsSymbolTable(t *testing.T) {
	stdout, stderr, err := execute(NewCheckCommand(testRoot(t, "text")), writeShapes(t)...)
	require.NoError(t, err, stderr)

	assert.Contains(t, stdout, "SYMBOL")
	assert.Contains(t, stdout, "geometry.area")
	assert.Contains(t, stdout, "main.main")
	assert.Contains(t, stdout, "✓ ")
	assert.Contains(t, stdout, "from 2 unit(s)")
}

func TestCheckJSON(t *testing.T) {
	stdout, _, err := execute(NewCheckCommand(testRoot(t, "json")), writeShapes(t)...)
	require.NoError(t, err)

	resp := decodeResponse(t, []byte(stdout))
	assert.Equal(t, "ok", resp.Status)

	var result struct {
		Units   int `json:"units"`
		Symbols []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 2, result.Units)

	kinds := map[string]string{}
	for _, s := range result.Symbols {
		kinds[s.Name] = s.Kind
	}
	assert.Equal(t, "func", kinds["geometry.area"])
	assert.Equal(t, "func", kinds["main.main"])
}

func TestCheckReportsShadowingAsWarning(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.py", "def foo(x):\n    return 1\n")
	b := writeFile(t, dir, "b.js", "function foo(y) { return 2; }\n")

	stdout, stderr, err := execute(NewCheckCommand(testRoot(t, "text")), a+":py:m", b+":js:m")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning[W101]")
	assert.Contains(t, stdout, "m.foo")
}

func TestCheckUnresolvedExitsOne(t *testing.T) {
	path := writeFile(t, t.TempDir(), "x.py", "x = missing + 1\n")

	_, stderr, err := execute(NewCheckCommand(testRoot(t, "text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "E101")
	assert.Contains(t, stderr, "missing")
}
