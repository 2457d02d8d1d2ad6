package auth

import (
	"errors"

	apperrors "project-service/pkg/errors"
)

// Token errors. Validate wraps exactly one of these.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// Identity lookup errors.
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrStoreUnavailable = apperrors.ErrUnavailable
)

// Login and access errors. These share the application sentinels so the HTTP
// error handler maps them by errors.Is.
var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrUnauthenticated    = apperrors.ErrUnauthorized
	ErrForbidden          = apperrors.ErrForbidden
)

func tokenErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return reasonExpired
	case errors.Is(err, ErrTokenBadSignature):
		return reasonBadSignature
	default:
		return reasonMalformed
	}
}
