// Package ops serves the operational endpoints: Prometheus metrics,
// health probes, and a routing-table dump. It listens on its own port
// so the data plane stays a pure passthrough.
package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fabtrak/edge/internal/health"
	"github.com/fabtrak/edge/internal/observability"
	"github.com/fabtrak/edge/internal/router"
)

// TableProvider returns the current routing table. Reloads swap tables,
// so the ops server resolves it per request.
type TableProvider func() *router.Table

// Server is the ops HTTP server.
type Server struct {
	server *http.Server
	logger observability.Logger
}

// Config holds ops server settings.
type Config struct {
	Port        int
	MetricsPath string
}

// NewServer creates the ops server.
func NewServer(
	cfg Config,
	metrics *observability.Metrics,
	checker *health.Checker,
	tables TableProvider,
	logger observability.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	path := cfg.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(metrics.Handler()))
	engine.GET("/health", gin.WrapF(checker.HealthHandler()))
	engine.GET("/ready", gin.WrapF(checker.ReadinessHandler()))
	engine.GET("/live", gin.WrapF(checker.LivenessHandler()))
	engine.GET("/routes", routesHandler(tables))

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           engine,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: logger,
	}
}

// routeEntry is one line of the routing-table dump.
type routeEntry struct {
	Prefixes []string `json:"prefixes,omitempty"`
	Origin   string   `json:"origin"`
	BaseURL  string   `json:"baseUrl"`
	Fallback bool     `json:"fallback,omitempty"`
}

// routesHandler dumps the active routing table, rules in evaluation
// order followed by the fallback.
func routesHandler(tables TableProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := tables()
		if table == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no routing table"})
			return
		}

		origins := table.Origins()
		entries := make([]routeEntry, 0, len(table.Rules())+1)
		for _, rule := range table.Rules() {
			entries = append(entries, routeEntry{
				Prefixes: rule.Prefixes,
				Origin:   string(rule.Origin),
				BaseURL:  origins[rule.Origin],
			})
		}
		entries = append(entries, routeEntry{
			Origin:   string(table.Fallback()),
			BaseURL:  origins[table.Fallback()],
			Fallback: true,
		})

		c.JSON(http.StatusOK, gin.H{"routes": entries})
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("starting ops server",
		observability.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ops server error", observability.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
