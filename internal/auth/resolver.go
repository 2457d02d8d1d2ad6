package auth

import (
	"context"
	"errors"
	"time"

	"project-service/internal/domain/identity"
	"project-service/internal/repository"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
)

// IdentityResolver loads principals from the identity store. Lookups are
// read-only and bounded by the caller's context plus a fixed timeout.
type IdentityResolver struct {
	store   repository.IdentityReader
	timeout time.Duration
}

func NewIdentityResolver(store repository.IdentityReader, timeout time.Duration) *IdentityResolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &IdentityResolver{store: store, timeout: timeout}
}

// ByID returns ErrIdentityNotFound for missing, disabled or unusable records
// and an error wrapping ErrStoreUnavailable when the store cannot answer.
func (r *IdentityResolver) ByID(ctx context.Context, id uuid.UUID) (*UserDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	i, err := r.store.GetByID(ctx, id)
	return resolve(i, err)
}

func (r *IdentityResolver) ByUsername(ctx context.Context, username string) (*UserDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	i, err := r.store.GetByUsername(ctx, username)
	return resolve(i, err)
}

func resolve(i *identity.Identity, err error) (*UserDetails, error) {
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, apperrors.Unavailable(msgIdentityLookupFailed, err)
	}

	if i == nil || !i.Enabled || !i.Role.Valid() {
		return nil, ErrIdentityNotFound
	}

	return newUserDetails(i), nil
}
