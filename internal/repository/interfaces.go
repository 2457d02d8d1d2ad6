package repository

import (
	"context"

	"project-service/internal/domain/identity"

	"github.com/google/uuid"
)

// Repository interfaces used by auth and middleware packages.
// These are provider-side interfaces that concrete implementations must satisfy.

// IdentityReader is the read-only view of the identity store used by the
// auth layer. Missing records are reported as errors wrapping
// apperrors.ErrNotFound.
type IdentityReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
	GetByUsername(ctx context.Context, username string) (*identity.Identity, error)
}
