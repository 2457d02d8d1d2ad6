package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const lockIdentitiesQuery = "LOCK TABLE identities IN SHARE ROW EXCLUSIVE MODE"

// withTx runs fn inside a transaction, committing only when fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return errFailedStartTransaction(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errFailedCommitTransaction(err)
	}
	return nil
}

// withIdentitiesLocked is withTx holding a lock that blocks other writers to
// identities until commit. Role and enabled changes use it so two concurrent
// demotions cannot both see a remaining administrator.
func (db *DB) withIdentitiesLocked(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockIdentitiesQuery); err != nil {
			return errFailedLockIdentities(err)
		}
		return fn(tx)
	})
}
