package auth

import (
	"context"

	"project-service/internal/domain/identity"

	"github.com/labstack/echo/v4"
)

// SecurityContext is the per-request authentication outcome. It is a value
// with unexported fields: once built it cannot be changed, and the zero value
// is the anonymous context.
type SecurityContext struct {
	authenticated bool
	principal     Principal
	authorities   map[identity.Role]struct{}
}

// Anonymous returns the unauthenticated context.
func Anonymous() SecurityContext {
	return SecurityContext{}
}

// Authenticated builds a context for an enabled principal. A nil or disabled
// principal yields the anonymous context.
func Authenticated(p Principal) SecurityContext {
	if p == nil || !p.AccountEnabled() {
		return Anonymous()
	}

	roles := p.Authorities()
	authorities := make(map[identity.Role]struct{}, len(roles))
	for _, r := range roles {
		authorities[r] = struct{}{}
	}

	return SecurityContext{
		authenticated: true,
		principal:     p,
		authorities:   authorities,
	}
}

func (s SecurityContext) IsAuthenticated() bool {
	return s.authenticated
}

// Principal returns the resolved principal, if any.
func (s SecurityContext) Principal() (Principal, bool) {
	if !s.authenticated {
		return nil, false
	}
	return s.principal, true
}

func (s SecurityContext) Authorities() []identity.Role {
	out := make([]identity.Role, 0, len(s.authorities))
	for _, r := range identity.Roles() {
		if _, ok := s.authorities[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// HasAnyAuthority reports whether the context is authenticated and holds at
// least one of roles.
func (s SecurityContext) HasAnyAuthority(roles ...identity.Role) bool {
	if !s.authenticated {
		return false
	}
	for _, r := range roles {
		if _, ok := s.authorities[r]; ok {
			return true
		}
	}
	return false
}

type securityContextKey struct{}

// WithSecurityContext returns a child of ctx carrying sc.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// FromContext returns the SecurityContext attached to ctx, or the anonymous
// context when none is present.
func FromContext(ctx context.Context) SecurityContext {
	if ctx == nil {
		return Anonymous()
	}
	sc, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	if !ok {
		return Anonymous()
	}
	return sc
}

// Current is FromContext for an echo handler.
func Current(c echo.Context) SecurityContext {
	return FromContext(c.Request().Context())
}
