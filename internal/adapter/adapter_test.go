package adapter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []source.Language{source.Go, source.JavaScript, source.Python}, r.Languages())

	a, err := r.For(source.Python)
	require.NoError(t, err)
	assert.Equal(t, source.Python, a.Language())

	_, err = r.For(source.Rust)
	assert.ErrorContains(t, err, "no source adapter")
}

func TestParseAllKeepsInputOrder(t *testing.T) {
	var units []*source.Unit
	for i := range 8 {
		units = append(units, source.NewUnit(
			fmt.Sprintf("m%d.py", i), source.Python, "", []byte(fmt.Sprintf("def f%d():\n    return %d\n", i, i))))
	}
	frags, diags, err := DefaultRegistry().ParseAll(context.Background(), units, Options{Parallelism: 3})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, frags, 8)
	for i, f := range frags {
		assert.Same(t, units[i], f.Unit)
		assert.Equal(t, fmt.Sprintf("f%d", i), f.Root.Children[0].Name)
	}
}

func TestParseAllCollectsDiagnosticsFromEveryUnit(t *testing.T) {
	units := []*source.Unit{
		source.NewUnit("ok.py", source.Python, "", []byte("x = 1\n")),
		source.NewUnit("bad.py", source.Python, "", []byte("class A:\n    pass\n")),
		source.NewUnit("bad.js", source.JavaScript, "", []byte("class B {}\n")),
		source.NewUnit("lib.rs", source.Rust, "", []byte("fn main() {}\n")),
	}
	frags, diags, err := DefaultRegistry().ParseAll(context.Background(), units, Options{})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "ok.py", frags[0].Unit.Path())

	errs := diags.Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "bad.py", errs[0].Pos.File)
	assert.Equal(t, "bad.js", errs[1].Pos.File)
	assert.Equal(t, "lib.rs", errs[2].Pos.File)
	assert.Equal(t, diag.CodeParse, errs[2].Code)
	assert.Contains(t, errs[2].Message, `language "rust"`)
}

func TestParseAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	units := []*source.Unit{source.NewUnit("a.py", source.Python, "", []byte("x = 1\n"))}
	frags, diags, err := DefaultRegistry().ParseAll(ctx, units, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, frags)
	assert.Nil(t, diags)
}

func TestDecodeEscapes(t *testing.T) {
	tests := []struct{ in, want string }{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`\x41\u0042\u{43}`, "ABC"},
		{`\U0001F600`, "\U0001F600"},
		{`keep \d`, `keep \d`},
		{`\\ \" \'`, `\ " '`},
	}
	for _, tt := range tests {
		got, err := decodeEscapes(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := decodeEscapes(`\u12`)
	assert.Error(t, err)
}

func TestParseIntLiteral(t *testing.T) {
	v, err := parseIntLiteral("0b101")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = parseIntLiteral("1_000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	_, err = parseIntLiteral("0755")
	assert.Error(t, err)

	_, err = parseIntLiteral("99999999999999999999")
	assert.Error(t, err)
}

func TestNormalizeFloat(t *testing.T) {
	assert.Equal(t, "0.5", normalizeFloat(".5"))
	assert.Equal(t, "1000.25", normalizeFloat("1_000.25"))
}
