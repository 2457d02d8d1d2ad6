// Package sqlite is an embedded identity store for local development and
// single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	busyTimeout      = 5 * time.Second
	defaultListLimit = 100
	maxListLimit     = 500

	errIdentityNotFound = "identity not found"
	errUsernameExists   = "username already exists"
	errLastAdmin        = "cannot disable or demote the last enabled administrator"
	errEmptyPath        = "sqlite path cannot be empty"

	errFailedOpenDatabaseFmt      = "failed to open database: %w"
	errFailedInitSchemaFmt        = "failed to initialize schema: %w"
	errFailedCreateIdentityFmt    = "failed to create identity: %w"
	errFailedGetIdentityFmt       = "failed to get identity: %w"
	errFailedListIdentitiesFmt    = "failed to list identities: %w"
	errFailedScanIdentityFmt      = "failed to scan identity: %w"
	errFailedUpdateIdentityFmt    = "failed to update identity: %w"
	errFailedCountAdminsFmt       = "failed to count admins: %w"
	errFailedStartTransactionFmt  = "failed to start transaction: %w"
	errFailedCommitTransactionFmt = "failed to commit transaction: %w"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('USER', 'ADMIN', 'PROJECT_MANAGER')),
	enabled       INTEGER NOT NULL DEFAULT 1,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_identities_role_enabled ON identities(role, enabled);
`

const identityColumns = "id, username, password_hash, role, enabled, created_at, updated_at"

// IdentityRepository stores identities in a SQLite database file.
type IdentityRepository struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
// Pass ":memory:" for a throwaway store.
func Open(path string) (*IdentityRepository, error) {
	if path == "" {
		return nil, errors.New(errEmptyPath)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf(errFailedOpenDatabaseFmt, err)
	}

	// SQLite only supports a single writer; one connection also keeps an
	// in-memory database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf(errFailedInitSchemaFmt, err)
	}

	return &IdentityRepository{db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*identity.Identity, error) {
	i := &identity.Identity{}
	var role string
	var createdAt, updatedAt int64
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.PasswordHash,
		&role,
		&i.Enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Role = identity.Role(role)
	i.CreatedAt = time.UnixMilli(createdAt).UTC()
	i.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return i, nil
}

func (r *IdentityRepository) Create(ctx context.Context, input identity.CreateIdentityInput) (*identity.Identity, error) {
	now := time.Now().UTC().UnixMilli()
	query := `
		INSERT INTO identities (id, username, password_hash, role, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		RETURNING ` + identityColumns

	row := r.db.QueryRowContext(ctx, query,
		uuid.New(),
		identity.NormalizeUsername(input.Username),
		input.PasswordHash,
		string(input.Role),
		now,
		now,
	)

	i, err := scanIdentity(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict(errUsernameExists)
		}
		return nil, fmt.Errorf(errFailedCreateIdentityFmt, err)
	}

	return i, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	return r.get(ctx, query, id)
}

func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE username = ?`
	return r.get(ctx, query, identity.NormalizeUsername(username))
}

func (r *IdentityRepository) get(ctx context.Context, query string, arg any) (*identity.Identity, error) {
	i, err := scanIdentity(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(errIdentityNotFound)
		}
		return nil, fmt.Errorf(errFailedGetIdentityFmt, err)
	}
	return i, nil
}

func (r *IdentityRepository) List(ctx context.Context, filter identity.ListFilter) ([]*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities`
	args := []any{}

	if filter.Query != "" {
		query += ` WHERE username LIKE ? ESCAPE '\'`
		args = append(args, escapeLikePattern(identity.NormalizeUsername(filter.Query))+"%")
	}

	query += " ORDER BY created_at ASC, username ASC LIMIT ? OFFSET ?"
	args = append(args, listLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf(errFailedListIdentitiesFmt, err)
	}
	defer rows.Close()

	var identities []*identity.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf(errFailedScanIdentityFmt, err)
		}
		identities = append(identities, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errFailedListIdentitiesFmt, err)
	}

	return identities, nil
}

// Update applies the non-nil fields of input. Changes that would leave no
// enabled ADMIN are rolled back with a conflict error.
func (r *IdentityRepository) Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().UnixMilli()}

	if input.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *input.Enabled)
	}

	if input.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*input.Role))
	}

	if input.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *input.PasswordHash)
	}

	query := "UPDATE identities SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf(errFailedStartTransactionFmt, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf(errFailedUpdateIdentityFmt, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf(errFailedUpdateIdentityFmt, err)
	}
	if affected == 0 {
		return apperrors.NotFound(errIdentityNotFound)
	}

	if input.Enabled != nil || input.Role != nil {
		var admins int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM identities WHERE role = ? AND enabled = 1",
			string(identity.RoleAdmin),
		).Scan(&admins)
		if err != nil {
			return fmt.Errorf(errFailedCountAdminsFmt, err)
		}
		if admins == 0 {
			return apperrors.Conflict(errLastAdmin)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf(errFailedCommitTransactionFmt, err)
	}
	return nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *IdentityRepository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
}

func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
