package rbac

import (
	"strings"

	"project-service/internal/domain/identity"
)

// Access is the kind of rule a route policy applies.
type Access string

const (
	AccessPublic        Access = "public"
	AccessAuthenticated Access = "authenticated"
	AccessRoles         Access = "roles"
)

// MethodAny matches every HTTP method in a RouteRule.
const MethodAny = "*"

// Policy is the access rule bound to a route.
type Policy struct {
	Access Access
	Roles  []identity.Role
}

func Public() Policy {
	return Policy{Access: AccessPublic}
}

func Authenticated() Policy {
	return Policy{Access: AccessAuthenticated}
}

// RequireRoles permits callers holding any of roles.
func RequireRoles(roles ...identity.Role) Policy {
	return Policy{Access: AccessRoles, Roles: append([]identity.Role(nil), roles...)}
}

func (p Policy) String() string {
	if p.Access != AccessRoles {
		return string(p.Access)
	}
	names := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		names[i] = string(r)
	}
	return string(p.Access) + ":" + strings.Join(names, ",")
}

// RouteRule binds a policy to an echo route pattern such as
// "/api/admin/users/:id".
type RouteRule struct {
	Method string
	Path   string
	Policy Policy
}

// Config is the static route policy table loaded once at startup.
type Config struct {
	DefaultPolicy Policy
	Routes        []RouteRule
}
