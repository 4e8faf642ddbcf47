// Package store provides SQLite-backed persistence for the artifact cache
// and the run history.
//
// # Tables
//
//   - artifacts: emitted files keyed by ir.ArtifactKey(program fingerprint,
//     target, emitter version). A cached artifact is only valid for the exact
//     program and emitter that produced it, so entries are never updated.
//   - runs: one row per fusion run with its outcome and diagnostic counts.
//
// # Patterns
//
// Writes are idempotent: inserting an artifact whose key exists is a no-op.
//
// Ordering uses a seq INTEGER logical clock, never timestamps. Every list
// query carries an ORDER BY so results are stable.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single connection, since SQLite has one writer
package store
