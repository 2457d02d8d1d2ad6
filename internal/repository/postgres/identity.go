package postgres

import (
	"context"
	"errors"
	"fmt"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const identityColumns = "id, username, password_hash, role, enabled, created_at, updated_at"

type IdentityRepository struct {
	db *DB
}

func NewIdentityRepository(db *DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*identity.Identity, error) {
	i := &identity.Identity{}
	var role string
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.PasswordHash,
		&role,
		&i.Enabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Role = identity.Role(role)
	return i, nil
}

func (r *IdentityRepository) Create(ctx context.Context, input identity.CreateIdentityInput) (*identity.Identity, error) {
	query := `
		INSERT INTO identities (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + identityColumns

	row := r.db.Pool.QueryRow(ctx, query,
		uuid.New(),
		identity.NormalizeUsername(input.Username),
		input.PasswordHash,
		string(input.Role),
	)

	i, err := scanIdentity(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict(errUsernameExists)
		}
		return nil, errFailedCreateIdentity(err)
	}

	return i, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	i, err := scanIdentity(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errIdentityNotFound)
		}
		return nil, errFailedGetIdentity(err)
	}

	return i, nil
}

func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE username = $1`

	i, err := scanIdentity(r.db.Pool.QueryRow(ctx, query, identity.NormalizeUsername(username)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errIdentityNotFound)
		}
		return nil, errFailedGetIdentity(err)
	}

	return i, nil
}

func (r *IdentityRepository) List(ctx context.Context, filter identity.ListFilter) ([]*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities`
	args := []any{}
	argCount := 0

	if filter.Query != "" {
		argCount++
		query += fmt.Sprintf(` WHERE username LIKE $%d ESCAPE '\'`, argCount)
		args = append(args, usernamePrefix(filter.Query))
	}

	query += " ORDER BY created_at ASC, username ASC"

	argCount++
	query += fmt.Sprintf(" LIMIT $%d", argCount)
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errFailedListIdentities(err)
	}
	defer rows.Close()

	var identities []*identity.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, errFailedScanIdentity(err)
		}
		identities = append(identities, i)
	}

	if err := rows.Err(); err != nil {
		return nil, errIterateIdentities(err)
	}

	return identities, nil
}

// Update applies the non-nil fields of input. Changes that would leave no
// enabled ADMIN are rolled back with a conflict error.
func (r *IdentityRepository) Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error {
	query := "UPDATE identities SET updated_at = NOW()"
	args := []any{id}
	argCount := 1

	if input.Enabled != nil {
		argCount++
		query += fmt.Sprintf(", enabled = $%d", argCount)
		args = append(args, *input.Enabled)
	}

	if input.Role != nil {
		argCount++
		query += fmt.Sprintf(", role = $%d", argCount)
		args = append(args, string(*input.Role))
	}

	if input.PasswordHash != nil {
		argCount++
		query += fmt.Sprintf(", password_hash = $%d", argCount)
		args = append(args, *input.PasswordHash)
	}

	query += " WHERE id = $1"

	return r.db.withIdentitiesLocked(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return errFailedUpdateIdentity(err)
		}

		if result.RowsAffected() == 0 {
			return apperrors.NotFound(errIdentityNotFound)
		}

		if input.Enabled == nil && input.Role == nil {
			return nil
		}

		var admins int
		err = tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM identities WHERE role = $1 AND enabled",
			string(identity.RoleAdmin),
		).Scan(&admins)
		if err != nil {
			return errFailedCountAdmins(err)
		}

		if admins == 0 {
			return apperrors.Conflict(errLastAdmin)
		}
		return nil
	})
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func (r *IdentityRepository) Close() error {
	r.db.Close()
	return nil
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
