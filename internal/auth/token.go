package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

var (
	errEmptySecret = errors.New("token signing secret must not be empty")
	errInvalidTTL  = errors.New("token TTL must be positive")
)

// Token is an issued bearer token together with the claims it was built from.
type Token struct {
	Value     string
	ID        string
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces the real clock. Tests pass an *abtime.ManualTime.
func WithClock(clock abtime.AbstractTime) TokenOption {
	return func(s *TokenService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLeeway tolerates clock skew between issuer and validator. The default
// is zero: a token is valid only while expiresAt > now.
func WithLeeway(leeway time.Duration) TokenOption {
	return func(s *TokenService) {
		if leeway > 0 {
			s.leeway = leeway
		}
	}
}

// WithIssuer stamps issued tokens with iss and requires it on validation.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		s.issuer = issuer
	}
}

// TokenService issues and validates HS256-signed JWTs. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	issuer string
	clock  abtime.AbstractTime
}

func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		return nil, errInvalidTTL
	}

	s := &TokenService{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		clock:  abtime.NewRealTime(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Issue signs a token whose subject is the principal's identifier.
func (s *TokenService) Issue(p Principal) (*Token, error) {
	if p == nil {
		return nil, errors.New(msgNilPrincipal)
	}

	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   p.ID().String(),
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf(msgSignTokenFailed, err)
	}

	return &Token{
		Value:     signed,
		ID:        claims.ID,
		Subject:   p.ID(),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Validate returns the token's subject, or an error wrapping exactly one of
// ErrTokenMalformed, ErrTokenBadSignature or ErrTokenExpired.
//
// Expiry is decided from the unverified claims before the signature is
// checked, so an expired token reports ErrTokenExpired whatever key signed it.
func (s *TokenService) Validate(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrTokenMalformed
	}

	unverified := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if unverified.ExpiresAt == nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrTokenMalformed, msgTokenMissingExpiry)
	}
	if s.expired(unverified.ExpiresAt.Time) {
		return uuid.Nil, ErrTokenExpired
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := s.newParser().ParseWithClaims(tokenString, claims, s.keyFunc); err != nil {
		return uuid.Nil, classifyParseError(err)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrTokenMalformed, msgTokenSubjectInvalid)
	}

	return subject, nil
}

func (s *TokenService) expired(expiresAt time.Time) bool {
	return !s.clock.Now().Before(expiresAt.Add(s.leeway))
}

// newParser builds a parser per call; jwt.Parser is cheap and this keeps the
// service free of shared parser state.
func (s *TokenService) newParser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(s.leeway))
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	return jwt.NewParser(opts...)
}

func (s *TokenService) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf(msgUnexpectedSigningMethod, token.Header["alg"])
	}
	return s.secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenBadSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
