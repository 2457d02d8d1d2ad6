package app

import (
	"context"
	"fmt"
	"time"

	"project-service/internal/audit"
	"project-service/internal/auth"
	"project-service/internal/config"
	"project-service/internal/http"
	"project-service/internal/http/middleware"
	"project-service/internal/metrics"
	"project-service/internal/rbac"
	"project-service/internal/rbac/presets"
	"project-service/internal/secrets"
	"project-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	secretLookupTimeout = 10 * time.Second
	redisPingTimeout    = 5 * time.Second
)

const (
	errFailedOpenStoreFmt      = "failed to open identity store: %w"
	errFailedResolveSecretFmt  = "failed to resolve JWT secret: %w"
	errFailedCreateTokensFmt   = "failed to create token service: %w"
	errFailedLoadPoliciesFmt   = "failed to load route policies: %w"
	errFailedCreateLimiterFmt  = "failed to create login limiter: %w"
	errFailedCreateServerFmt   = "failed to create HTTP server: %w"
	errFailedConnectRedisFmt   = "failed to connect to redis at %s: %w"
	errFailedCreateSecretsFmt  = "failed to create secrets client: %w"
	errUnsupportedRateLimitFmt = "unsupported rate limit backend: %s"
)

// InitializeService wires every dependency from a validated configuration.
// On error everything opened so far is released.
func InitializeService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Service, err error) {
	s := &Service{config: cfg, log: log}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if err := ResolveSecret(ctx, cfg); err != nil {
		return nil, fmt.Errorf(errFailedResolveSecretFmt, err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf(errFailedOpenStoreFmt, err)
	}
	s.store = store
	s.closers = append(s.closers, store.Close)
	log.Info().Str("backend", cfg.Store.Backend).Msg("identity store ready")

	tokens, err := NewTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateTokensFmt, err)
	}

	policies, err := loadPolicies(cfg.Auth.RoutePolicyFile)
	if err != nil {
		return nil, fmt.Errorf(errFailedLoadPoliciesFmt, err)
	}

	m := metrics.New(nil)

	var sink audit.Sink = audit.NewLogSink(logger.Component(log, "audit"))
	if store.DB != nil {
		sink = audit.NewPostgresSink(store.DB.Pool)
	}
	s.recorder = audit.NewRecorder(sink, logger.Component(log, "audit"))

	observer := auth.Observers{m, s.recorder}

	loginLimiter, err := s.newLoginLimiter(ctx)
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateLimiterFmt, err)
	}

	credentials := auth.NewCredentialVerifier(cfg.Auth.BcryptCost)
	resolver := auth.NewIdentityResolver(store.Identities, cfg.Auth.IdentityLookupTimeout)
	authLog := logger.Component(log, "auth")

	server, err := http.NewServer(&http.ServerDependencies{
		Config:        cfg,
		Logger:        logger.Component(log, "http"),
		Identities:    store.Identities,
		Authenticator: auth.NewAuthenticator(tokens, resolver, observer, authLog),
		Guard:         auth.NewGuard(policies, observer, authLog),
		Login:         auth.NewLoginService(resolver, credentials, tokens, auth.WithRehash(store.Identities, authLog)),
		Credentials:   credentials,
		Observer:      observer,
		Metrics:       m,
		LoginLimiter:  loginLimiter,
	})
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateServerFmt, err)
	}
	s.server = server

	return s, nil
}

// NewTokenService builds the signer from the resolved JWT settings.
func NewTokenService(cfg *config.Config) (*auth.TokenService, error) {
	return auth.NewTokenService(
		[]byte(cfg.JWT.Secret),
		cfg.JWT.ExpiryDuration,
		auth.WithLeeway(cfg.JWT.Leeway),
		auth.WithIssuer(cfg.JWT.Issuer),
	)
}

// ResolveSecret loads the signing key from AWS Secrets Manager when only an
// ARN is configured.
func ResolveSecret(ctx context.Context, cfg *config.Config) error {
	if cfg.JWT.Secret != "" || cfg.JWT.SecretARN == "" {
		return nil
	}

	store, err := secrets.NewStore(&cfg.AWS)
	if err != nil {
		return fmt.Errorf(errFailedCreateSecretsFmt, err)
	}

	ctx, cancel := context.WithTimeout(ctx, secretLookupTimeout)
	defer cancel()
	return secrets.ResolveJWTSecret(ctx, cfg, store)
}

func loadPolicies(path string) (*rbac.PolicyTable, error) {
	if path == "" {
		return rbac.New(presets.ProjectService())
	}
	cfg, err := rbac.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return rbac.New(cfg)
}

func (s *Service) newLoginLimiter(ctx context.Context) (middleware.Limiter, error) {
	rl := s.config.RateLimit

	switch rl.Backend {
	case config.RateLimitMemory:
		return middleware.NewWindowRateLimiter(rl.LoginLimit, rl.LoginWindow), nil
	case config.RateLimitRedis:
		rc := s.config.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		s.closers = append(s.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf(errFailedConnectRedisFmt, rc.Addr, err)
		}
		s.log.Info().Str("addr", rc.Addr).Msg("redis login limiter ready")
		return middleware.NewRedisLimiter(client, rl.LoginLimit, rl.LoginWindow), nil
	default:
		return nil, fmt.Errorf(errUnsupportedRateLimitFmt, rl.Backend)
	}
}
