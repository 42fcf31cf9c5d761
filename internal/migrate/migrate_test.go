package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"sinkrelay/db"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestApplyEmbeddedSQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	runner := NewRunner(db.Migrations)

	for i := 0; i < 2; i++ {
		if err := runner.Apply(ctx, conn, "sqlite"); err != nil {
			t.Fatalf("apply #%d: %v", i+1, err)
		}
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&n); err != nil {
		t.Fatalf("deliveries table missing: %v", err)
	}
}

func TestApplyRunsFilesInNameOrder(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	files := fstest.MapFS{
		"migrations/sqlite/002_seed.sql":   {Data: []byte(`INSERT INTO t (v) VALUES ('seed');`)},
		"migrations/sqlite/001_create.sql": {Data: []byte(`CREATE TABLE t (v TEXT);`)},
		"migrations/sqlite/README.md":      {Data: []byte(`ignored`)},
	}
	if err := NewRunner(files).Apply(ctx, conn, "sqlite"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var v string
	if err := conn.QueryRowContext(ctx, `SELECT v FROM t`).Scan(&v); err != nil || v != "seed" {
		t.Fatalf("expected seeded row, got %q err=%v", v, err)
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(db.Migrations)
	if err := runner.Apply(ctx, nil, "sqlite"); err == nil {
		t.Fatalf("expected error for nil db")
	}
	if err := runner.Apply(ctx, openSQLite(t), ""); err == nil {
		t.Fatalf("expected error for empty dialect")
	}
	if err := runner.Apply(ctx, openSQLite(t), "oracle"); err == nil {
		t.Fatalf("expected error for unknown dialect directory")
	}
}
