package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/emit"
	"github.com/roach88/rift/internal/fusion"
	"github.com/roach88/rift/internal/source"
)

// AssertionError is returned when an expectation fails.
// It includes the diagnostics of the run to help debug the failure.
type AssertionError struct {
	Type     string    // expectation kind: status, diagnostic, contains, absent, error
	Expected string    // human-readable expected outcome
	Actual   string    // human-readable actual outcome
	Diags    diag.List // every diagnostic of the run
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Diags) > 0 {
		fmt.Fprintf(&buf, "\nDiagnostics:\n")
		for _, d := range e.Diags {
			fmt.Fprintf(&buf, "  %s\n", d)
		}
	}
	return buf.String()
}

// Evaluate checks every expectation against a run. res may be nil when the
// job could not start; runErr is the pipeline's error return.
func Evaluate(exp Expect, res *fusion.Result, runErr error) []error {
	var diags diag.List
	var artifacts []*emit.Artifact
	if res != nil {
		diags = res.Diags
		artifacts = res.Artifacts
	}

	var errs []error
	if err := assertStatus(exp, res, runErr); err != nil {
		errs = append(errs, err)
	}
	for _, d := range exp.Diagnostics {
		if err := assertDiagnostic(diags, d); err != nil {
			errs = append(errs, err)
		}
	}
	for target, subs := range exp.Contains {
		for _, sub := range subs {
			if err := assertText(artifacts, diags, target, sub, true); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for target, subs := range exp.Absent {
		for _, sub := range subs {
			if err := assertText(artifacts, diags, target, sub, false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if exp.Error != "" && (runErr == nil || !strings.Contains(runErr.Error(), exp.Error)) {
		errs = append(errs, &AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("internal error containing %q", exp.Error),
			Actual:   fmt.Sprint(runErr),
			Diags:    diags,
		})
	}
	return errs
}

func actualStatus(res *fusion.Result, runErr error) string {
	switch {
	case runErr != nil:
		return StatusFailed
	case res == nil || !res.OK():
		return StatusError
	}
	return StatusOK
}

func assertStatus(exp Expect, res *fusion.Result, runErr error) error {
	got := actualStatus(res, runErr)
	if got == exp.Status {
		return nil
	}
	actual := got
	if runErr != nil {
		actual = fmt.Sprintf("%s (%v)", got, runErr)
	}
	e := &AssertionError{Type: "status", Expected: exp.Status, Actual: actual}
	if res != nil {
		e.Diags = res.Diags
	}
	return e
}

func assertDiagnostic(diags diag.List, want DiagnosticExpect) error {
	count := 0
	for _, d := range diags {
		if d.Code != want.Code {
			continue
		}
		if want.Severity != "" && d.Severity.String() != want.Severity {
			continue
		}
		if want.File != "" && d.Pos.File != want.File && !strings.HasSuffix(d.Pos.File, "/"+want.File) {
			continue
		}
		if want.Contains != "" && !strings.Contains(d.Message, want.Contains) {
			continue
		}
		count++
	}
	if (want.Count == 0 && count > 0) || (want.Count > 0 && count == want.Count) {
		return nil
	}
	expected := fmt.Sprintf("at least one %s diagnostic", want.Code)
	if want.Count > 0 {
		expected = fmt.Sprintf("exactly %d %s diagnostic(s)", want.Count, want.Code)
	}
	if want.Contains != "" {
		expected += fmt.Sprintf(" containing %q", want.Contains)
	}
	return &AssertionError{
		Type:     "diagnostic",
		Expected: expected,
		Actual:   fmt.Sprintf("%d matching", count),
		Diags:    diags,
	}
}

func assertText(artifacts []*emit.Artifact, diags diag.List, target, sub string, present bool) error {
	lang, _ := source.ParseLanguage(target)
	kind := "contains"
	if !present {
		kind = "absent"
	}
	for _, a := range artifacts {
		if a.Target != lang {
			continue
		}
		if strings.Contains(a.Text, sub) == present {
			return nil
		}
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s output %s %q", lang, map[bool]string{true: "containing", false: "without"}[present], sub),
			Actual:   "\n" + a.Text,
			Diags:    diags,
		}
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("an artifact for %s", lang),
		Actual:   "no artifact",
		Diags:    diags,
	}
}
