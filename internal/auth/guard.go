package auth

import (
	"context"
	"errors"

	"project-service/internal/rbac"
	apperrors "project-service/pkg/errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PolicySource resolves the policy of a matched route.
type PolicySource interface {
	Lookup(method, path string) rbac.Policy
}

// Guard enforces route policies against the SecurityContext produced by the
// Authenticator. It must run after the Authenticator and after routing.
type Guard struct {
	policies PolicySource
	observer Observer
	log      zerolog.Logger
}

func NewGuard(policies PolicySource, observer Observer, log zerolog.Logger) *Guard {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Guard{policies: policies, observer: observer, log: log}
}

// Check decides a policy for sc. Denials wrap ErrUnauthenticated when the
// caller has no valid credentials and ErrForbidden when the caller is
// authenticated but holds none of the required roles.
func (g *Guard) Check(policy rbac.Policy, sc SecurityContext) error {
	switch policy.Access {
	case rbac.AccessPublic:
		return nil
	case rbac.AccessAuthenticated:
		if !sc.IsAuthenticated() {
			return apperrors.Unauthorized(msgAuthenticationRequired)
		}
		return nil
	case rbac.AccessRoles:
		if !sc.IsAuthenticated() {
			return apperrors.Unauthorized(msgAuthenticationRequired)
		}
		if !sc.HasAnyAuthority(policy.Roles...) {
			return apperrors.Forbidden(msgAccessDenied)
		}
		return nil
	default:
		// Unknown access kinds never reach a validated table; deny anyway.
		return apperrors.Forbidden(msgAccessDenied)
	}
}

// Middleware enforces the table policy of the matched route.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			policy := g.policies.Lookup(c.Request().Method, c.Path())
			if err := g.enforce(c, policy); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// Require enforces a fixed policy on a single route or group, independent of
// the table.
func (g *Guard) Require(policy rbac.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.enforce(c, policy); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func (g *Guard) enforce(c echo.Context, policy rbac.Policy) error {
	ctx := c.Request().Context()
	sc := FromContext(ctx)
	err := g.Check(policy, sc)

	if policy.Access != rbac.AccessPublic {
		g.observe(ctx, c, policy, sc, err)
	}

	if err == nil {
		return nil
	}

	if errors.Is(err, ErrUnauthenticated) {
		c.Response().Header().Set(headerWWWAuthenticate, TokenType)
	}

	g.log.Debug().
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("route", c.Request().Method+" "+c.Path()).
		Str("policy", policy.String()).
		Bool("authenticated", sc.IsAuthenticated()).
		Msg("access denied")

	return err
}

func (g *Guard) observe(ctx context.Context, c echo.Context, policy rbac.Policy, sc SecurityContext, err error) {
	result := ResultPermitted
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthenticated):
		result = ResultUnauthorized
	default:
		result = ResultForbidden
	}

	event := NewEvent(c, EventAccess, result)
	event.Access = policy.String()
	if p, ok := sc.Principal(); ok {
		event.Subject = p.ID()
	}
	g.observer.Observe(ctx, event)
}
