package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Runner applies every migrations/<dialect>/*.sql file of FS in name order.
// Migrations must be idempotent; no version table is kept.
type Runner struct {
	FS fs.FS
}

func NewRunner(files fs.FS) *Runner {
	return &Runner{FS: files}
}

func (r *Runner) Apply(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if dialect == "" {
		return fmt.Errorf("empty dialect")
	}
	base := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(r.FS, base)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, path.Join(base, e.Name()))
	}
	sort.Strings(files)
	for _, p := range files {
		sqlBytes, err := fs.ReadFile(r.FS, p)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply %s: %w", p, err)
		}
	}
	return nil
}
