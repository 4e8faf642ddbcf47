package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestArtifact creates an artifact with minimal required fields.
func createTestArtifact(key, target, program string) Artifact {
	return Artifact{
		Key:         key,
		Target:      target,
		ProgramHash: program,
		FileName:    "main." + target,
		Content:     "// " + target + "\n",
		ContentHash: "hash-" + key,
	}
}
