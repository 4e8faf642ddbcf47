// Package diag defines the structured diagnostics every pipeline stage
// reports, and the typed error kinds behind them.
package diag

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rift/internal/source"
)

// Severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	for _, sev := range []Severity{Error, Warning, Info} {
		if sev.String() == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Diagnostic codes.
const (
	CodeInternal       = "E000"
	CodeParse          = "E001"
	CodeManifest       = "E002"
	CodeUnresolved     = "E101"
	CodeConflict       = "E102"
	CodeAliasCycle     = "E103"
	CodeNonConvergence = "E201"
	CodeUnsupported    = "E301"
	CodeShadowed       = "W101"
)

// Diagnostic is a single error, warning or note tied to a source location.
type Diagnostic struct {
	Severity Severity     `json:"severity"`
	Code     string       `json:"code"`
	Kind     string       `json:"kind,omitempty"`
	Pos      source.Pos   `json:"pos"`
	Message  string       `json:"message"`
	Hint     string       `json:"hint,omitempty"`
	Related  []source.Pos `json:"related,omitempty"`
}

// String renders the diagnostic as
//
//	error[E102] a.py:1:1: message
//	  see: b.go:3:1
//	  hint: ...
func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s] %s: %s", d.Severity, d.Code, d.Pos, d.Message)
	for _, r := range d.Related {
		fmt.Fprintf(&b, "\n  see: %s", r)
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, "\n  hint: %s", d.Hint)
	}
	return b.String()
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Add appends diagnostics.
func (l *List) Add(ds ...Diagnostic) {
	*l = append(*l, ds...)
}

// Errorf appends an error diagnostic.
func (l *List) Errorf(code string, pos source.Pos, format string, args ...any) {
	l.Add(Diagnostic{Severity: Error, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Warningf appends a warning diagnostic.
func (l *List) Warningf(code string, pos source.Pos, format string, args ...any) {
	l.Add(Diagnostic{Severity: Warning, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Append records err. Typed errors keep their code and position; anything
// else becomes an internal error.
func (l *List) Append(err error) {
	if err == nil {
		return
	}
	if d, ok := AsDiagnostic(err); ok {
		l.Add(d)
		return
	}
	l.Add(Diagnostic{Severity: Error, Code: CodeInternal, Message: err.Error()})
}

// HasErrors reports whether any diagnostic is an error.
func (l List) HasErrors() bool {
	return slices.ContainsFunc(l, func(d Diagnostic) bool { return d.Severity == Error })
}

// Errors returns only the error diagnostics.
func (l List) Errors() List { return l.filter(Error) }

// Warnings returns only the warning diagnostics.
func (l List) Warnings() List { return l.filter(Warning) }

func (l List) filter(s Severity) List {
	var out List
	for _, d := range l {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// ByCode returns the diagnostics carrying code.
func (l List) ByCode(code string) List {
	var out List
	for _, d := range l {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns a copy ordered by position, severity, code and message.
func (l List) Sorted() List {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		if c := a.Pos.Compare(b.Pos); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Severity, b.Severity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	})
	return out
}

// Format renders every diagnostic followed by a summary line.
func (l List) Format() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range l {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	errs, warns := len(l.Errors()), len(l.Warnings())
	fmt.Fprintf(&b, "%d error(s), %d warning(s)\n", errs, warns)
	return b.String()
}

// Err returns a *ListError when the list has errors, nil otherwise.
func (l List) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return &ListError{List: l}
}

// ListError carries a diagnostic list through error returns.
type ListError struct {
	List List
}

func (e *ListError) Error() string {
	errs := e.List.Errors()
	if len(errs) == 1 {
		return errs[0].String()
	}
	return fmt.Sprintf("%d errors, first: %s", len(errs), errs[0])
}
