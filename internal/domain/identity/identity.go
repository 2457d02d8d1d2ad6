package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is one of the fixed set of roles an identity can hold.
type Role string

const (
	RoleUser           Role = "USER"
	RoleAdmin          Role = "ADMIN"
	RoleProjectManager Role = "PROJECT_MANAGER"
)

const errUnknownRoleFmt = "unknown role: %q"

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleProjectManager}
}

// ParseRole accepts a role name in any case and returns the canonical Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleAdmin, RoleProjectManager:
		return r, nil
	}
	return "", fmt.Errorf(errUnknownRoleFmt, s)
}

func (r Role) Valid() bool {
	parsed, err := ParseRole(string(r))
	return err == nil && parsed == r
}

type Identity struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the public-safe view of an identity. It never carries the
// password hash.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (i *Identity) Summary() Summary {
	return Summary{
		ID:       i.ID.String(),
		Username: i.Username,
		Role:     i.Role,
	}
}

type CreateIdentityInput struct {
	Username     string
	PasswordHash string
	Role         Role
}

type UpdateIdentityInput struct {
	Enabled      *bool
	Role         *Role
	PasswordHash *string
}

// ListFilter narrows an identity listing. Query matches a username prefix.
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

// NormalizeUsername is applied by every store before writing or looking up
// a username, so lookups are case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
