package store

import (
	"fmt"
	"strings"
)

// RunFilter selects runs from the history. Zero fields match every run.
type RunFilter struct {
	Name        string
	Status      RunStatus
	ProgramHash string
	Limit       int // zero or less returns every match
}

// ParseRunStatus resolves a status name.
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case RunOK, RunError, RunFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q (want ok, error or failed)", s)
}

const runColumns = "id, name, status, units, targets, errors, warnings, program_hash, cache_hits, duration_ms, seq"

// compile converts the filter to parameterized SQL.
//
// Values are never interpolated, and every query orders by seq with id as a
// tiebreaker so the listing is deterministic.
func (f RunFilter) compile() (string, []any, error) {
	var (
		terms  []string
		params []any
	)
	eq := func(column string, value any) {
		terms = append(terms, column+" = ?")
		params = append(params, value)
	}
	if f.Name != "" {
		eq("name", f.Name)
	}
	if f.Status != "" {
		if _, err := ParseRunStatus(string(f.Status)); err != nil {
			return "", nil, err
		}
		eq("status", string(f.Status))
	}
	if f.ProgramHash != "" {
		eq("program_hash", f.ProgramHash)
	}

	var b strings.Builder
	b.WriteString("SELECT " + runColumns + " FROM runs")
	if len(terms) > 0 {
		b.WriteString(" WHERE " + strings.Join(terms, " AND "))
	}
	b.WriteString(" ORDER BY seq DESC, id COLLATE BINARY ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, f.Limit)
	}
	return b.String(), params, nil
}
