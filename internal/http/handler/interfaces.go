package handler

import (
	"context"

	"project-service/internal/auth"
	"project-service/internal/domain/identity"

	"github.com/google/uuid"
)

// Consumer-side interfaces defined by handlers
// Each interface contains only the methods needed by the specific handler

// AuthHandler interfaces
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.LoginResult, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

type IdentityCreator interface {
	Create(ctx context.Context, input identity.CreateIdentityInput) (*identity.Identity, error)
}

// AdminHandler interfaces
type IdentityAdmin interface {
	List(ctx context.Context, filter identity.ListFilter) ([]*identity.Identity, error)
	Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error
}

// HealthHandler interfaces
type Pinger interface {
	Ping(ctx context.Context) error
}
