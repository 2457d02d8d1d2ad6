package auth

import (
	"project-service/internal/domain/identity"

	"github.com/google/uuid"
)

// Principal is the capability set downstream code sees for an authenticated
// caller. Handlers depend on this, not on identity.Identity.
type Principal interface {
	ID() uuid.UUID
	Username() string
	Role() identity.Role
	Authorities() []identity.Role
	AccountEnabled() bool
	CredentialsValid() bool
	Summary() identity.Summary
}

// UserDetails is the Principal produced by IdentityResolver. It is immutable;
// the password hash stays inside this package.
type UserDetails struct {
	id           uuid.UUID
	username     string
	role         identity.Role
	enabled      bool
	passwordHash string
	authorities  []identity.Role
}

func newUserDetails(i *identity.Identity) *UserDetails {
	return &UserDetails{
		id:           i.ID,
		username:     i.Username,
		role:         i.Role,
		enabled:      i.Enabled,
		passwordHash: i.PasswordHash,
		authorities:  authoritiesFor(i.Role),
	}
}

// authoritiesFor maps a stored role to the authority set checked by the
// guard. Roles do not imply one another.
func authoritiesFor(role identity.Role) []identity.Role {
	if !role.Valid() {
		return nil
	}
	return []identity.Role{role}
}

func (u *UserDetails) ID() uuid.UUID {
	return u.id
}

func (u *UserDetails) Username() string {
	return u.username
}

func (u *UserDetails) Role() identity.Role {
	return u.role
}

func (u *UserDetails) Authorities() []identity.Role {
	out := make([]identity.Role, len(u.authorities))
	copy(out, u.authorities)
	return out
}

func (u *UserDetails) AccountEnabled() bool {
	return u.enabled
}

func (u *UserDetails) CredentialsValid() bool {
	return u.passwordHash != ""
}

func (u *UserDetails) Summary() identity.Summary {
	return identity.Summary{
		ID:       u.id.String(),
		Username: u.username,
		Role:     u.role,
	}
}
