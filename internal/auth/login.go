package auth

import (
	"context"
	"errors"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"
	"project-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UsernameLookup is the part of IdentityResolver the login flow needs.
type UsernameLookup interface {
	ByUsername(ctx context.Context, username string) (*UserDetails, error)
}

// TokenIssuer is the part of TokenService the login flow needs.
type TokenIssuer interface {
	Issue(p Principal) (*Token, error)
}

// CredentialWriter stores a replacement password hash.
type CredentialWriter interface {
	Update(ctx context.Context, id uuid.UUID, input identity.UpdateIdentityInput) error
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token    *Token
	Identity identity.Summary
}

// LoginService turns a username and password into an issued token.
type LoginService struct {
	identity    UsernameLookup
	credentials *CredentialVerifier
	tokens      TokenIssuer
	rehash      CredentialWriter
	log         zerolog.Logger
}

type LoginOption func(*LoginService)

// WithRehash re-hashes the password of a successful login when its stored
// hash is below the verifier's cost, and writes the new hash through w.
func WithRehash(w CredentialWriter, log zerolog.Logger) LoginOption {
	return func(s *LoginService) {
		s.rehash = w
		s.log = log
	}
}

func NewLoginService(identity UsernameLookup, credentials *CredentialVerifier, tokens TokenIssuer, opts ...LoginOption) *LoginService {
	s := &LoginService{
		identity:    identity,
		credentials: credentials,
		tokens:      tokens,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate returns the same ErrInvalidCredentials error for an unknown
// username and for a wrong password. Store failures are returned as is.
func (s *LoginService) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	details, err := s.identity.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.credentials.BurnTime(password)
			return nil, apperrors.InvalidCredentials()
		}
		return nil, err
	}

	if !s.credentials.Verify(password, details.passwordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	s.upgradeHash(ctx, details, password)

	token, err := s.tokens.Issue(details)
	if err != nil {
		return nil, apperrors.InternalServer(msgIssueTokenFailed, err)
	}

	return &LoginResult{Token: token, Identity: details.Summary()}, nil
}

// upgradeHash never fails the login; a hash that could not be replaced is
// tried again on the next one.
func (s *LoginService) upgradeHash(ctx context.Context, details *UserDetails, password string) {
	if s.rehash == nil || !s.credentials.NeedsRehash(details.passwordHash) {
		return
	}

	hash, err := s.credentials.Hash(password)
	if err == nil {
		err = s.rehash.Update(ctx, details.ID(), identity.UpdateIdentityInput{PasswordHash: &hash})
	}
	if err != nil {
		s.log.Warn().
			Str("error", logger.SanitizeError(err)).
			Str("identity_id", details.ID().String()).
			Msg("password rehash failed")
		return
	}
	details.passwordHash = hash
}
