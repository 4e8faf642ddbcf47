package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Artifact is a cached emitter output.
type Artifact struct {
	Key         string `json:"key"`
	Target      string `json:"target"`
	ProgramHash string `json:"program_hash"`
	FileName    string `json:"file"`
	Content     string `json:"-"`
	ContentHash string `json:"content_hash"`
	Seq         int64  `json:"seq"`
}

// RunStatus is the outcome of a fusion run.
type RunStatus string

const (
	RunOK     RunStatus = "ok"     // artifacts produced
	RunError  RunStatus = "error"  // stopped on diagnostics
	RunFailed RunStatus = "failed" // internal failure
)

// Run is one row of the run history.
type Run struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      RunStatus `json:"status"`
	Units       int       `json:"units"`
	Targets     []string  `json:"targets"`
	Errors      int       `json:"errors"`
	Warnings    int       `json:"warnings"`
	ProgramHash string    `json:"program_hash,omitempty"`
	CacheHits   int       `json:"cache_hits"`
	DurationMS  int64     `json:"duration_ms"`
	Seq         int64     `json:"seq"`
}

// nextSeq returns the next logical clock value for table.
func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM "+table).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq for %s: %w", table, err)
	}
	return seq, nil
}

// PutArtifact stores an artifact and reports whether it was new.
// Uses ON CONFLICT(key) DO NOTHING for idempotency - an existing key is left
// untouched, since the key already pins program, target and emitter.
func (s *Store) PutArtifact(ctx context.Context, a Artifact) (inserted bool, err error) {
	if a.Key == "" {
		return false, fmt.Errorf("put artifact: empty key")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("put artifact: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "artifacts")
	if err != nil {
		return false, fmt.Errorf("put artifact: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(key, target, program_hash, file_name, content, content_hash, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`,
		a.Key,
		a.Target,
		a.ProgramHash,
		a.FileName,
		a.Content,
		a.ContentHash,
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("put artifact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put artifact: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("put artifact: commit: %w", err)
	}
	return rows > 0, nil
}

// RecordRun appends a run to the history. A missing ID is filled with a
// random UUID. The stored run, with its seq, is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	targets, err := marshalTargets(run.Targets)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback()

	run.Seq, err = nextSeq(ctx, tx, "runs")
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, name, status, units, targets, errors, warnings, program_hash, cache_hits, duration_ms, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Name,
		string(run.Status),
		run.Units,
		targets,
		run.Errors,
		run.Warnings,
		run.ProgramHash,
		run.CacheHits,
		run.DurationMS,
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

// Clear removes every cached artifact and the run history. It returns the
// number of artifacts and runs removed.
func (s *Store) Clear(ctx context.Context) (artifacts, runs int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("clear: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM artifacts")
	if err != nil {
		return 0, 0, fmt.Errorf("clear artifacts: %w", err)
	}
	if artifacts, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("clear artifacts: %w", err)
	}
	res, err = tx.ExecContext(ctx, "DELETE FROM runs")
	if err != nil {
		return 0, 0, fmt.Errorf("clear runs: %w", err)
	}
	if runs, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("clear runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("clear: commit: %w", err)
	}
	return artifacts, runs, nil
}
