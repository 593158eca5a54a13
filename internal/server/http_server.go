// Package server constructs and starts the relay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use; hijacked WebSocket
// connections are not subject to them.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ListenAndServe serves the relay until ctx is cancelled, then shuts down the
// HTTP listener and all connections within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := CreateServer(s.cfg.Addr, s.SetupRoutes())

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	return s.shutdownAll(httpServer)
}

func (s *Server) shutdownAll(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server...")
	httpErr := httpServer.Shutdown(ctx)
	if httpErr != nil {
		s.log.Warn("HTTP server shutdown error", "error", httpErr)
	}

	connErr := s.Shutdown(ctx)
	return errors.Join(httpErr, connErr)
}
