package postgres

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent, so Migrate is safe to run on each deploy.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, errFailedReadMigration(err)
	}
	sort.Strings(names)

	err = db.withTx(ctx, func(tx pgx.Tx) error {
		for _, name := range names {
			schema, err := migrationFiles.ReadFile(name)
			if err != nil {
				return errFailedReadMigration(err)
			}
			if _, err := tx.Exec(ctx, string(schema)); err != nil {
				return errFailedApplyMigration(name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}
