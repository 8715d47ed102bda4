// Package server runs the todobot backend: the HTTP API and the periodic
// task scheduler, stopped together on context cancellation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/todobot/internal/config"
)

// Scheduler is started once and stopped on shutdown.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// Server represents the backend process and manages its components'
// lifecycle.
type Server struct {
	logger    *slog.Logger
	cfg       config.ServerConfig
	handler   http.Handler
	scheduler Scheduler
}

// NewServer creates the backend orchestrator.
func NewServer(logger *slog.Logger, cfg config.ServerConfig, handler http.Handler, scheduler Scheduler) *Server {
	return &Server{
		logger:    logger.With("component", "server_orchestrator"),
		cfg:       cfg,
		handler:   handler,
		scheduler: scheduler,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln and the scheduler until ctx is cancelled
// or one of them fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting server orchestrator...", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server...", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		s.logger.Info("HTTP server stopped.")
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting scheduler...")
		if err := s.scheduler.Start(gCtx); err != nil {
			s.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		s.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := s.scheduler.Stop(); err != nil {
			s.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	s.logger.Info("Server orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Server orchestrator stopped due to error", "error", err)
		return err
	}

	s.logger.Info("Server orchestrator stopped gracefully.")
	return nil
}
