package pg

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/dropDatabas3/gatehouse/migrations"
)

// migrationLockID es el ID del pg_advisory_lock que serializa las migraciones
// cuando arrancan varias instancias a la vez.
const migrationLockID = int64(0x67617465686f7573) // "gatehous"

// Migrate aplica los *.sql embebidos en orden lexicográfico y devuelve
// cuántos scripts se ejecutaron. Toma un advisory lock para que solo una
// instancia migre a la vez.
func (r *Repo) Migrate(ctx context.Context) (int, error) {
	if _, err := r.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return 0, fmt.Errorf("pg: migration lock: %w", err)
	}
	defer r.pool.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)

	entries, err := fs.ReadDir(migrations.FS, migrations.Dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, path.Join(migrations.Dir, e.Name()))
		}
	}
	sort.Strings(files)

	var applied int
	for _, f := range files {
		b, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return applied, err
		}
		if _, err := r.pool.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("pg: exec %s: %w", f, err)
		}
		applied++
	}
	return applied, nil
}
