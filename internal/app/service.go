package app

import (
	"context"
	"errors"
	stdhttp "net/http"

	"project-service/internal/audit"
	"project-service/internal/config"
	"project-service/internal/http"

	"github.com/rs/zerolog"
)

const serverAddrPrefix = ":"

// Service is the assembled project-service process.
type Service struct {
	config   *config.Config
	log      zerolog.Logger
	store    *Store
	recorder *audit.Recorder
	server   *http.Server
	closers  []func() error
}

// Handler exposes the HTTP router, mainly for tests.
func (s *Service) Handler() stdhttp.Handler {
	return s.server.Handler()
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully within the configured timeout.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("port", s.config.Server.Port).Msg("starting HTTP server")
		if err := s.server.Start(serverAddrPrefix + s.config.Server.Port); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Service) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("server exited gracefully")
	return nil
}

// Close flushes pending audit writes and releases the store and redis
// connections. It is safe to call on a partially initialized Service.
func (s *Service) Close() {
	if s.recorder != nil {
		s.recorder.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn().Err(err).Msg("close failed")
		}
	}
	s.closers = nil
}
