package http

import (
	"context"
	stdhttp "net/http"

	"project-service/internal/auth"
	"project-service/internal/config"
	"project-service/internal/http/handler"
	"project-service/internal/http/middleware"
	"project-service/internal/metrics"
	"project-service/internal/rbac/presets"
	"project-service/internal/repository"
	"project-service/pkg/profiling"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	requestBodyLimit = "1M"

	// Lenient per-caller budget for the whole API.
	apiRequestsPerSecond = 100
	apiBurst             = 200
)

type ServerDependencies struct {
	Config        *config.Config
	Logger        zerolog.Logger
	Identities    repository.IdentityRepository
	Authenticator *auth.Authenticator
	Guard         *auth.Guard
	Login         *auth.LoginService
	Credentials   *auth.CredentialVerifier
	Observer      auth.Observer
	Metrics       *metrics.Metrics
	// LoginLimiter throttles login and registration attempts per client
	// address. APILimiter throttles everything per principal or address.
	LoginLimiter middleware.Limiter
	APILimiter   middleware.Limiter
}

type Server struct {
	echo     *echo.Echo
	deps     *ServerDependencies
	pipeline *Pipeline
}

func NewServer(deps *ServerDependencies) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	if deps.Config != nil {
		e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
		e.Server.WriteTimeout = deps.Config.Server.WriteTimeout
	}

	apiLimiter := deps.APILimiter
	if apiLimiter == nil {
		apiLimiter = middleware.NewRateLimiter(apiRequestsPerSecond, apiBurst)
	}

	pipeline, err := NewPipeline(
		Stage{Name: StageRequestID, Middleware: middleware.RequestID()},
		Stage{Name: StageSecurityHeaders, Middleware: middleware.SecurityHeaders()},
		Stage{Name: StageAccessLog, After: []StageName{StageRequestID}, Middleware: middleware.AccessLog(deps.Logger)},
		Stage{Name: StageRecover, Middleware: echomiddleware.Recover()},
		Stage{Name: StageBodyLimit, Middleware: echomiddleware.BodyLimit(requestBodyLimit)},
		Stage{Name: StageMetrics, Middleware: deps.Metrics.Middleware()},
		Stage{Name: StageAuthenticate, After: []StageName{StageRequestID}, Middleware: deps.Authenticator.Middleware()},
		Stage{Name: StageRateLimit, Middleware: middleware.RateLimit(apiLimiter, middleware.ByPrincipalOrIP, deps.Logger)},
		Stage{Name: StageAuthorize, Middleware: deps.Guard.Middleware()},
	)
	if err != nil {
		return nil, err
	}
	pipeline.Apply(e)

	authHandler := handler.NewAuthHandler(deps.Login, deps.Credentials, deps.Identities, deps.Observer)
	adminHandler := handler.NewAdminHandler(deps.Identities)
	healthHandler := handler.NewHealthHandler(deps.Identities, deps.Logger)

	var loginLimit []echo.MiddlewareFunc
	if deps.LoginLimiter != nil {
		loginLimit = append(loginLimit, middleware.RateLimit(deps.LoginLimiter, middleware.ByIP, deps.Logger))
	}

	e.POST(presets.RouteLogin, authHandler.Login, loginLimit...)
	e.POST(presets.RouteRegister, authHandler.Register, loginLimit...)
	e.GET(presets.RouteHealth, healthHandler.Check)
	e.GET(presets.RouteMetrics, echo.WrapHandler(deps.Metrics.Handler()))

	e.GET(presets.RouteMe, handler.Me)
	e.GET(presets.RouteAdminUsers, adminHandler.ListUsers)
	e.PATCH(presets.RouteAdminUser, adminHandler.UpdateUser)

	if deps.Config != nil && deps.Config.Server.EnablePprof {
		e.GET(presets.RouteDebugPprof, profiling.Handler())
	}

	return &Server{
		echo:     e,
		deps:     deps,
		pipeline: pipeline,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() stdhttp.Handler {
	return s.echo
}

func (s *Server) Stages() []StageName {
	return s.pipeline.Names()
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
