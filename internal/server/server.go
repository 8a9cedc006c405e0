package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/metrics"
	"github.com/muurk/ssdpd/internal/registry"
)

// shutdownTimeout bounds Shutdown when the caller's context has no deadline
const shutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Addr     string // Listen address, e.g. ":8080"
	CertPath string // Serve TLS when both CertPath and KeyPath are set
	KeyPath  string
}

// Source is the advertisement store the server reads from
type Source interface {
	All() []registry.Advertisement
	Advertisements(protocol string) []registry.Advertisement
	Discovered(protocol string) []registry.Advertisement
	Subscribe(fn func(registry.Event)) func()
}

// Server exposes metrics, the advertisement list and a live WebSocket feed over HTTP
type Server struct {
	config    *Config
	source    Source
	metrics   *metrics.Metrics
	tlsConfig *tls.Config
	http      *http.Server
	listener  net.Listener
	now       func() time.Time

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*client
	unsubscribe func()
}

// New creates a new Server instance. m may be nil.
func New(config *Config, source Source, m *metrics.Metrics) (*Server, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.New("server address is required")
	}
	if source == nil {
		return nil, errors.New("advertisement source is required")
	}

	s := &Server{
		config:      config,
		source:      source,
		metrics:     m,
		now:         time.Now,
		activeConns: make(map[string]*client),
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.http = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tlsConfig,
	}
	return s, nil
}

// Listen binds the configured address. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.unsubscribe = s.source.Subscribe(s.broadcast)

	logging.Info("HTTP server listening",
		zap.String("addr", s.listener.Addr().String()),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.tlsConfig != nil {
			err = s.http.ServeTLS(s.listener, "", "")
		} else {
			err = s.http.Serve(s.listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP server...")

	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	err := s.http.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, c := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		delete(s.activeConns, addr)
		c.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	return err
}

// GetActiveConnections returns the number of active WebSocket connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
