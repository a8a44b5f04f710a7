package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Start serves until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}
	s.logServerInfo()

	serverErrors := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", httpServer.Addr,
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			// The certificate comes from GetCertificate
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// configureTLS loads the certificate pair and, when enabled, starts watching it
func (s *Server) configureTLS(httpServer *http.Server) error {
	switch s.TLSConfig.Mode {
	case "", "disabled":
		return nil
	case "server":
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}

	reloader, err := NewCertReloader(s.TLSConfig.CertFile, s.TLSConfig.KeyFile,
		s.TLSConfig.Reload.DebounceDelay, s.observability.GetMetrics(), s.Logger)
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}
	if s.TLSConfig.Reload.Enabled {
		if err := reloader.Watch(); err != nil {
			return fmt.Errorf("failed to watch certificates: %w", err)
		}
	}

	s.CertReloader = reloader
	httpServer.TLSConfig = buildTLSConfig(s.TLSConfig, reloader)
	return nil
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	err := server.Shutdown(shutdownCtx)
	s.cleanup()
	if err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanup stops the certificate watcher and the rate limiter
func (s *Server) cleanup() {
	if s.CertReloader != nil {
		if err := s.CertReloader.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop certificate watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}

// logServerInfo logs the effective security settings at startup
func (s *Server) logServerInfo() {
	s.Logger.Info("Server configuration",
		"tls_mode", s.TLSConfig.Mode,
		"api_keys_configured", len(s.APIKeys),
		"max_request_size_bytes", s.MaxRequestSize,
		"rate_limit_enabled", s.RateLimiter != nil,
		"ai_enabled", s.services.Orchestrator.AIEnabled())

	if len(s.APIKeys) == 0 {
		s.Logger.Warn("API authentication disabled: endpoints are publicly accessible")
	}
	if s.MaxRequestSize <= 0 {
		s.Logger.Warn("No request size limit configured")
	}
	if s.RateLimiter == nil {
		s.Logger.Warn("No rate limiting configured")
	}
}
