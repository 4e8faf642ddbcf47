package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetArtifact returns the cached artifact for key. The boolean is false when
// nothing is cached under key.
func (s *Store) GetArtifact(ctx context.Context, key string) (Artifact, bool, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT key, target, program_hash, file_name, content, content_hash, seq
		FROM artifacts
		WHERE key = ?
	`, key).Scan(&a.Key, &a.Target, &a.ProgramHash, &a.FileName, &a.Content, &a.ContentHash, &a.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	return a, true, nil
}

// ListArtifacts returns the cached artifacts of one program, ordered by
// target.
//
// Returns an empty slice (not nil) if nothing is cached for the program.
func (s *Store) ListArtifacts(ctx context.Context, programHash string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, target, program_hash, file_name, content, content_hash, seq
		FROM artifacts
		WHERE program_hash = ?
		ORDER BY target COLLATE BINARY ASC, seq ASC
	`, programHash)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []Artifact{}
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Key, &a.Target, &a.ProgramHash, &a.FileName, &a.Content, &a.ContentHash, &a.Seq); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

// ListRuns returns the runs matching filter, most recent first.
//
// Returns an empty slice (not nil) if no run matches.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query, args, err := filter.compile()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run     Run
		status  string
		targets string
	)
	err := rows.Scan(&run.ID, &run.Name, &status, &run.Units, &targets, &run.Errors, &run.Warnings,
		&run.ProgramHash, &run.CacheHits, &run.DurationMS, &run.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	if run.Targets, err = unmarshalTargets(targets); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	return run, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Artifacts int            `json:"artifacts"`
	Bytes     int64          `json:"bytes"`
	ByTarget  map[string]int `json:"by_target"`
	Runs      int            `json:"runs"`
}

// Stats counts cached artifacts per target and recorded runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByTarget: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, COUNT(*), COALESCE(SUM(LENGTH(CAST(content AS BLOB))), 0)
		FROM artifacts
		GROUP BY target
		ORDER BY target COLLATE BINARY ASC
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			target string
			count  int
			bytes  int64
		)
		if err := rows.Scan(&target, &count, &bytes); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		st.ByTarget[target] = count
		st.Artifacts += count
		st.Bytes += bytes
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&st.Runs); err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}
	return st, nil
}
