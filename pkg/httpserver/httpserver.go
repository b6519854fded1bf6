// Package httpserver wraps net/http with graceful shutdown and
// slog-based lifecycle logging.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("httpserver.start_failed")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("httpserver.shutdown_failed")
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Server runs an http.Server and shuts it down gracefully when the
// context is cancelled or an interrupt/TERM signal arrives.
type Server struct {
	cfg Config
	log *slog.Logger
}

// New returns a Server with the given configuration.
func New(cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, log: log}
}

// Run starts the server and blocks until it stops. A clean shutdown
// returns nil; listen failures are wrapped with ErrStart and shutdown
// failures with ErrShutdown.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "http server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return errors.Join(ErrStart, err)
	case <-ctx.Done():
	case sig := <-stop:
		s.log.InfoContext(ctx, "shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(ErrShutdown, err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err)
	}

	s.log.InfoContext(ctx, "http server stopped")
	return nil
}
