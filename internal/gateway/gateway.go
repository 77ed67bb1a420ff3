// Package gateway owns the data-plane HTTP server lifecycle.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/fabtrak/edge/internal/config"
	"github.com/fabtrak/edge/internal/observability"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("gateway already started")

// Gateway runs the data-plane listener. The handler it serves is the
// middleware-wrapped forwarder; reloads happen inside the forwarder, so
// the listener itself never restarts on config changes.
type Gateway struct {
	logger          observability.Logger
	server          *http.Server
	listener        net.Listener
	listenAddr      string
	shutdownTimeout config.Duration

	mu      sync.Mutex
	started bool
}

// GatewayOption is a functional option for configuring the gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New creates a gateway serving handler on the configured address.
func New(listen string, cfg config.ServerConfig, handler http.Handler, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		logger:          observability.NopLogger(),
		listenAddr:      listen,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration(),
		IdleTimeout:       cfg.IdleTimeout.Duration(),
		// No ReadTimeout/WriteTimeout: bodies stream through and a
		// server-wide deadline would sever long transfers.
	}

	return g
}

// Start binds the listener and begins serving in a goroutine.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", g.listenAddr)
	if err != nil {
		return err
	}
	g.listener = ln
	g.started = true

	g.logger.Info("gateway listening",
		observability.String("address", ln.Addr().String()),
	)

	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", observability.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address, valid after Start.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return g.listenAddr
	}
	return g.listener.Addr().String()
}

// Stop gracefully drains and shuts down the server.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	g.mu.Unlock()

	if g.shutdownTimeout.Duration() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout.Duration())
		defer cancel()
	}

	return g.server.Shutdown(ctx)
}
