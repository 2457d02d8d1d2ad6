package repository

import (
	"context"

	"project-service/internal/domain/identity"

	"github.com/google/uuid"
)

// IdentityRepository defines identity data access operations.
type IdentityRepository interface {
	IdentityReader

	Create(ctx context.Context, input identity.CreateIdentityInput) (*identity.Identity, error)
	List(ctx context.Context, filter identity.ListFilter) ([]*identity.Identity, error)
	// Update refuses to leave the store without an enabled administrator.
	Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error
	Ping(ctx context.Context) error
	Close() error
}

