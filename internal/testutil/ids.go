// Package testutil holds deterministic stand-ins for the nondeterministic
// parts of a fusion run.
package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns the same job ID every time.
//
// Scenario runs use it so that logs and run records of the same scenario
// are identical between runs.
//
// Thread-safety: FixedIDs is immutable and safe for concurrent use.
type FixedIDs struct {
	id string
}

// NewFixedIDs creates a generator for id. An empty id becomes
// "test-job-default".
func NewFixedIDs(id string) *FixedIDs {
	if id == "" {
		id = "test-job-default"
	}
	return &FixedIDs{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDs) Generate() string {
	return g.id
}

// SequenceIDs numbers job IDs: prefix-1, prefix-2, ...
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceIDs creates a generator whose first ID is prefix-1.
func NewSequenceIDs(prefix string) *SequenceIDs {
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next ID in the sequence.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence so a test can replay the same run.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
