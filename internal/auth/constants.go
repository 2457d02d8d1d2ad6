package auth

import "time"

const (
	headerAuthorization   = "Authorization"
	headerWWWAuthenticate = "WWW-Authenticate"

	// bearerPrefix is matched literally: case-sensitive, single space.
	bearerPrefix = "Bearer "

	// TokenType is the scheme reported to clients alongside issued tokens.
	TokenType = "Bearer"

	DefaultTokenTTL       = 24 * time.Hour
	DefaultLookupTimeout  = 2 * time.Second
	DefaultBcryptCost     = 12
	maxPasswordBytes      = 72
	dummyPasswordMaterial = "not-a-real-password"
)

const (
	msgUnexpectedSigningMethod = "unexpected signing method: %v"
	msgTokenMissingExpiry      = "token has no expiry"
	msgTokenSubjectInvalid     = "token subject is not a valid identifier"
	msgPasswordEmpty           = "password cannot be empty"
	msgPasswordTooLong         = "password must not exceed %d bytes"
	msgHashPasswordFailed      = "failed to hash password: %w"
	msgSignTokenFailed         = "failed to sign token: %w"
	msgIssueTokenFailed        = "failed to issue token"
	msgIdentityLookupFailed    = "identity lookup failed"
	msgAuthenticationRequired  = "authentication required"
	msgAccessDenied            = "access denied"
	msgNilPrincipal            = "principal is nil"
)

// Reason labels used for logs, metrics and audit events. They name the
// failure class only and never carry token or credential material.
const (
	reasonNoToken        = "no_token"
	reasonMalformed      = "malformed"
	reasonBadSignature   = "bad_signature"
	reasonExpired        = "expired"
	reasonUnknownSubject = "unknown_subject"
	reasonAuthenticated  = "authenticated"
	reasonStoreFailure   = "store_unavailable"
)
