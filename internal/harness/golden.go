package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rift/internal/emit"
)

// GoldenName is the golden file stem for one artifact.
func GoldenName(scenario string, a *emit.Artifact) string {
	return scenario + "." + string(a.Target)
}

// RunWithGolden runs a scenario, requires it to pass and compares every
// artifact with testdata/golden/<scenario>.<target>.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func RunWithGolden(t *testing.T, h *Harness, sc *Scenario) *Result {
	t.Helper()

	result, err := h.Run(t.Context(), sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	if !result.Pass {
		for _, e := range result.Errors {
			t.Error(e)
		}
		t.FailNow()
	}
	if result.Fusion == nil {
		return result
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, a := range result.Fusion.Artifacts {
		g.Assert(t, GoldenName(sc.Name, a), []byte(a.Text))
	}
	return result
}

// CompareGolden checks artifacts against golden files in dir, or rewrites
// them when update is set. It returns the files written and every mismatch.
func CompareGolden(dir, scenario string, artifacts []*emit.Artifact, update bool) ([]string, []error) {
	var (
		written []string
		errs    []error
	)
	for _, a := range artifacts {
		path := filepath.Join(dir, GoldenName(scenario, a)+".golden")
		if update {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return written, append(errs, fmt.Errorf("golden: %w", err))
			}
			if err := os.WriteFile(path, []byte(a.Text), 0644); err != nil {
				return written, append(errs, fmt.Errorf("golden: %w", err))
			}
			written = append(written, path)
			continue
		}
		want, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("golden file %s missing, run with --update", path))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("golden: %w", err))
			continue
		}
		if !bytes.Equal(want, []byte(a.Text)) {
			errs = append(errs, &AssertionError{
				Type:     "golden",
				Expected: fmt.Sprintf("%s to match %s", a.FileName, path),
				Actual:   "\n" + a.Text,
			})
		}
	}
	return written, errs
}
