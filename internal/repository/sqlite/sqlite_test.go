package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

// newTestDB opens a fresh, migrated in-memory database that is closed when
// the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vegfuel.db")

	db, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	db.Close()

	// Reopening an up-to-date database must not re-run migrations.
	db, err = New(context.Background(), path)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	db.Close()
}

func TestFileDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data/vegfuel.db", "data/vegfuel.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"},
		{"file:x.db?cache=shared", "file:x.db?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"},
	}
	for _, tt := range tests {
		if got := fileDSN(tt.in); got != tt.want {
			t.Errorf("fileDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
