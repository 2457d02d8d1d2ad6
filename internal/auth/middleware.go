package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// TokenValidator is the part of TokenService the middleware needs.
type TokenValidator interface {
	Validate(tokenString string) (uuid.UUID, error)
}

// IdentityLookup is the part of IdentityResolver the middleware needs.
type IdentityLookup interface {
	ByID(ctx context.Context, id uuid.UUID) (*UserDetails, error)
}

// Authenticator turns the Authorization header of every request into a
// SecurityContext. It never rejects a request for missing or bad
// credentials; that decision belongs to the Guard.
type Authenticator struct {
	tokens   TokenValidator
	identity IdentityLookup
	observer Observer
	log      zerolog.Logger
}

func NewAuthenticator(tokens TokenValidator, identity IdentityLookup, observer Observer, log zerolog.Logger) *Authenticator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Authenticator{
		tokens:   tokens,
		identity: identity,
		observer: observer,
		log:      log,
	}
}

// Resolve computes the SecurityContext for an Authorization header value and
// the reason label for the outcome. The only error it returns wraps
// ErrStoreUnavailable; token and lookup failures degrade to anonymous.
func (a *Authenticator) Resolve(ctx context.Context, authorization string) (SecurityContext, string, error) {
	token, ok := extractBearerToken(authorization)
	if !ok {
		return Anonymous(), reasonNoToken, nil
	}

	subject, err := a.tokens.Validate(token)
	if err != nil {
		return Anonymous(), tokenErrorReason(err), nil
	}

	principal, err := a.identity.ByID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Anonymous(), reasonUnknownSubject, nil
		}
		return Anonymous(), reasonStoreFailure, err
	}

	return Authenticated(principal), reasonAuthenticated, nil
}

// Middleware runs Resolve for every request and attaches the result to the
// request context before calling the next stage.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			sc, reason, err := a.Resolve(ctx, req.Header.Get(headerAuthorization))

			if reason != reasonNoToken {
				event := NewEvent(c, EventToken, reason)
				if p, ok := sc.Principal(); ok {
					event.Subject = p.ID()
				}
				a.observer.Observe(ctx, event)
			}

			if err != nil {
				a.log.Error().
					Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
					Str("reason", reason).
					Err(err).
					Msg("identity resolution failed")
				return err
			}

			if !sc.IsAuthenticated() && reason != reasonNoToken {
				a.log.Debug().
					Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
					Str("reason", reason).
					Msg("bearer token rejected, continuing anonymously")
			}

			c.SetRequest(req.WithContext(WithSecurityContext(ctx, sc)))
			return next(c)
		}
	}
}

func extractBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}

	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}

	return token, true
}
