// Command edge runs the fabtrak edge gateway: a single public entry
// point that routes every request by path prefix to the docs site, the
// API backend, or the frontend, and forwards it unchanged.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabtrak/edge/internal/config"
	"github.com/fabtrak/edge/internal/gateway"
	"github.com/fabtrak/edge/internal/health"
	"github.com/fabtrak/edge/internal/middleware"
	"github.com/fabtrak/edge/internal/observability"
	"github.com/fabtrak/edge/internal/ops"
	"github.com/fabtrak/edge/internal/proxy"
	"github.com/fabtrak/edge/internal/router"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.configPath, "config",
		getEnvOrDefault("EDGE_CONFIG", ""),
		"path to configuration file (optional)")
	flag.StringVar(&flags.logLevel, "log-level",
		getEnvOrDefault("EDGE_LOG_LEVEL", ""),
		"log level (debug, info, warn, error)")
	flag.StringVar(&flags.logFormat, "log-format",
		getEnvOrDefault("EDGE_LOG_FORMAT", ""),
		"log format (json, console)")
	flag.BoolVar(&flags.showVersion, "version", false, "print version and exit")
	flag.Parse()

	return flags
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("edge %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		return
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// CLI flags win over both file and environment.
	if flags.logLevel != "" {
		cfg.Observability.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.Logging.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	logger.Info("starting edge gateway",
		observability.String("version", version),
		observability.String("commit", gitCommit),
		observability.String("listen", cfg.Listen),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", observability.Error(err))
	}

	if flags.configPath != "" {
		watcher, err := config.NewWatcher(flags.configPath, app.onConfigReload,
			config.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to create config watcher", observability.Error(err))
		}
		app.watcher = watcher
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.start(ctx); err != nil {
		logger.Fatal("failed to start", observability.Error(err))
	}

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	app.stop(shutdownCtx)
	logger.Info("edge gateway stopped")
}

// loadConfig resolves the configuration. With no file the defaults plus
// EDGE_* environment overrides apply.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if path == "" {
		cfg = config.FromEnvironment()
	} else {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// application wires the forwarder, servers, and config watcher.
type application struct {
	cfg       *config.Config
	logger    observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	forwarder *proxy.Forwarder
	gateway   *gateway.Gateway
	ops       *ops.Server
	watcher   *config.Watcher
}

func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("edge")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Enabled:      cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}

	table := router.New(originsFromConfig(cfg))
	forwarder := proxy.NewForwarder(table,
		proxy.WithTransport(proxy.NewTransport(cfg.Proxy)),
		proxy.WithLogger(logger),
		proxy.WithMetrics(metrics),
	)

	handler := buildMiddlewareChain(forwarder, logger, metrics, tracer)

	gw := gateway.New(cfg.Listen, cfg.Server, handler,
		gateway.WithLogger(logger),
	)

	app := &application{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		forwarder: forwarder,
		gateway:   gw,
	}

	if cfg.Observability.Metrics.Enabled {
		checker := health.NewChecker(version)
		probeClient := &http.Client{Transport: proxy.NewTransport(cfg.Proxy)}
		for name, base := range map[string]string{
			"docs":     cfg.Origins.Docs,
			"api":      cfg.Origins.API,
			"frontend": cfg.Origins.Frontend,
		} {
			checker.RegisterCheck(name,
				health.UpstreamCheck(base, probeClient, 5*time.Second))
		}

		app.ops = ops.NewServer(
			ops.Config{
				Port:        cfg.Observability.Metrics.Port,
				MetricsPath: cfg.Observability.Metrics.Path,
			},
			metrics, checker, forwarder.Table, logger,
		)
	}

	return app, nil
}

// buildMiddlewareChain wraps the forwarder, outermost first.
func buildMiddlewareChain(
	forwarder *proxy.Forwarder,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	var handler http.Handler = forwarder

	handler = observability.MetricsMiddleware(metrics)(handler)
	handler = observability.TracingMiddleware(tracer)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}

func (a *application) start(ctx context.Context) error {
	if err := a.gateway.Start(ctx); err != nil {
		return err
	}

	if a.ops != nil {
		a.ops.Start()
	}

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (a *application) stop(ctx context.Context) {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error("failed to stop config watcher", observability.Error(err))
		}
	}

	if a.ops != nil {
		if err := a.ops.Stop(ctx); err != nil {
			a.logger.Error("failed to stop ops server", observability.Error(err))
		}
	}

	if err := a.gateway.Stop(ctx); err != nil {
		a.logger.Error("failed to stop gateway", observability.Error(err))
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shut down tracer", observability.Error(err))
	}
}

// onConfigReload swaps the routing table without touching the listener.
func (a *application) onConfigReload(cfg *config.Config) {
	a.forwarder.Reload(router.New(originsFromConfig(cfg)))
	a.logger.Info("routing table reloaded",
		observability.String("docs", cfg.Origins.Docs),
		observability.String("api", cfg.Origins.API),
		observability.String("frontend", cfg.Origins.Frontend),
	)
}

func originsFromConfig(cfg *config.Config) map[router.Origin]string {
	return map[router.Origin]string{
		router.OriginDocs:     cfg.Origins.Docs,
		router.OriginAPI:      cfg.Origins.API,
		router.OriginFrontend: cfg.Origins.Frontend,
	}
}

func waitForShutdown(logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received",
		observability.String("signal", sig.String()),
	)
}
