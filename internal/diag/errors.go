package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/source"
)

// Error kind names, as they appear in Diagnostic.Kind.
const (
	KindParse          = "ParseError"
	KindUnresolved     = "UnresolvedSymbolError"
	KindConflict       = "ConflictError"
	KindNonConvergence = "NonConvergenceError"
	KindUnsupported    = "UnsupportedConstructError"
	KindShadowed       = "ShadowedDeclaration"
	KindInternal       = "InternalError"
)

// Diagnoser is implemented by errors that convert to a Diagnostic.
type Diagnoser interface {
	Diagnostic() Diagnostic
}

// AsDiagnostic extracts the diagnostic of the first Diagnoser in err's chain.
func AsDiagnostic(err error) (Diagnostic, bool) {
	var d Diagnoser
	if errors.As(err, &d) {
		return d.Diagnostic(), true
	}
	return Diagnostic{}, false
}

// ParseError reports source text an adapter or the manifest parser could not
// accept.
type ParseError struct {
	Pos      source.Pos
	Expected string
	Found    string
	Code     string // CodeParse when empty
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

func (e *ParseError) Diagnostic() Diagnostic {
	code := e.Code
	if code == "" {
		code = CodeParse
	}
	return Diagnostic{
		Severity: Error,
		Code:     code,
		Kind:     KindParse,
		Pos:      e.Pos,
		Message:  fmt.Sprintf("expected %s, found %s", e.Expected, e.Found),
	}
}

// UnresolvedSymbolError reports a reference with no matching declaration.
type UnresolvedSymbolError struct {
	Name   string
	Pos    source.Pos
	Module string
	Cycle  []string // set when the name is part of an alias cycle
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.message())
}

func (e *UnresolvedSymbolError) message() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("cannot resolve %s: import cycle %s", e.Name, strings.Join(e.Cycle, " -> "))
	}
	if e.Module != "" {
		return fmt.Sprintf("unresolved symbol %q in module %s", e.Name, e.Module)
	}
	return fmt.Sprintf("unresolved symbol %q", e.Name)
}

func (e *UnresolvedSymbolError) Diagnostic() Diagnostic {
	d := Diagnostic{
		Severity: Error,
		Code:     CodeUnresolved,
		Kind:     KindUnresolved,
		Pos:      e.Pos,
		Message:  e.message(),
	}
	if len(e.Cycle) > 0 {
		d.Code = CodeAliasCycle
		d.Hint = "break the cycle by importing the declaring module directly"
	}
	return d
}

// Site is one declaration taking part in a conflict.
type Site struct {
	Pos       source.Pos
	Signature string
}

// ConflictError reports two incompatible declarations of one qualified
// name. First is always the canonically earlier site, so the error does not
// depend on the order fragments were supplied in.
type ConflictError struct {
	Name   string
	First  Site
	Second Site
}

// NewConflictError orders the two sites canonically.
func NewConflictError(name string, a, b Site) *ConflictError {
	if b.Pos.Compare(a.Pos) < 0 {
		a, b = b, a
	}
	return &ConflictError{Name: name, First: a, Second: b}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.First.Pos, e.message())
}

func (e *ConflictError) message() string {
	return fmt.Sprintf("conflicting declarations of %s: %s at %s and %s at %s",
		e.Name, e.First.Signature, e.First.Pos, e.Second.Signature, e.Second.Pos)
}

func (e *ConflictError) Diagnostic() Diagnostic {
	return Diagnostic{
		Severity: Error,
		Code:     CodeConflict,
		Kind:     KindConflict,
		Pos:      e.First.Pos,
		Message:  e.message(),
		Related:  []source.Pos{e.Second.Pos},
		Hint:     "rename one declaration or make the signatures agree",
	}
}

// NonConvergenceError reports an optimizer pass that kept changing the IR
// past its iteration cap.
type NonConvergenceError struct {
	Pass       string
	Iterations int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("optimizer pass %s did not converge after %d iterations", e.Pass, e.Iterations)
}

func (e *NonConvergenceError) Diagnostic() Diagnostic {
	return Diagnostic{
		Severity: Error,
		Code:     CodeNonConvergence,
		Kind:     KindNonConvergence,
		Message:  e.Error(),
	}
}

// UnsupportedConstructError reports an IR node an emitter has no lowering
// rule for.
type UnsupportedConstructError struct {
	Target    string
	Construct string
	Pos       source.Pos
	Detail    string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.message())
}

func (e *UnsupportedConstructError) message() string {
	msg := fmt.Sprintf("%s cannot be emitted for target %s", e.Construct, e.Target)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *UnsupportedConstructError) Diagnostic() Diagnostic {
	return Diagnostic{
		Severity: Error,
		Code:     CodeUnsupported,
		Kind:     KindUnsupported,
		Pos:      e.Pos,
		Message:  e.message(),
	}
}
