// Package config provides configuration management for the edge gateway.
// Configuration is loaded once at startup from a YAML file with environment
// variable substitution, then passed explicitly into the components that
// need it. Nothing reads the environment at request time.
package config

import (
	"os"
	"time"
)

// Hardcoded fallback origins, used when neither the config file nor the
// environment provides a value.
const (
	DefaultDocsOrigin     = "https://fabtrak-docs.pages.dev"
	DefaultAPIOrigin      = "https://api.fabtrak.app"
	DefaultFrontendOrigin = "https://app.fabtrak.app"
)

// Environment variables that override the configured origins.
const (
	EnvDocsOrigin     = "EDGE_DOCS_ORIGIN"
	EnvAPIOrigin      = "EDGE_API_ORIGIN"
	EnvFrontendOrigin = "EDGE_FRONTEND_ORIGIN"
)

// Config holds all configuration for the edge gateway.
type Config struct {
	// Listen is the data-plane listen address (host:port).
	Listen string `yaml:"listen"`

	// Origins are the three upstream base URLs requests are forwarded to.
	Origins OriginsConfig `yaml:"origins"`

	// Server holds data-plane server settings.
	Server ServerConfig `yaml:"server"`

	// Proxy holds outbound transport settings.
	Proxy ProxyConfig `yaml:"proxy"`

	// Observability holds logging, metrics, and tracing settings.
	Observability ObservabilityConfig `yaml:"observability"`
}

// OriginsConfig holds the upstream base URLs.
type OriginsConfig struct {
	// Docs serves paths under /docs.
	Docs string `yaml:"docs"`

	// API serves paths under /api, /auth, and /admin.
	API string `yaml:"api"`

	// Frontend serves everything else.
	Frontend string `yaml:"frontend"`
}

// ServerConfig holds data-plane HTTP server settings. Write and read
// timeouts are intentionally absent: the gateway streams request and
// response bodies through, and a server-wide deadline would sever long
// transfers mid-flight.
type ServerConfig struct {
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       Duration `yaml:"idleTimeout"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
}

// ProxyConfig holds outbound transport settings.
type ProxyConfig struct {
	DialTimeout         Duration `yaml:"dialTimeout"`
	TLSHandshakeTimeout Duration `yaml:"tlsHandshakeTimeout"`
	MaxIdleConns        int      `yaml:"maxIdleConns"`
	MaxIdleConnsPerHost int      `yaml:"maxIdleConnsPerHost"`
	IdleConnTimeout     Duration `yaml:"idleConnTimeout"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds settings for the ops server, which exposes the
// Prometheus endpoint alongside health probes.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing settings. Disabled by
// default: the gateway adds no headers to forwarded requests, and trace
// propagation stays off unless explicitly enabled.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	ServiceName  string  `yaml:"serviceName"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Origins: OriginsConfig{
			Docs:     DefaultDocsOrigin,
			API:      DefaultAPIOrigin,
			Frontend: DefaultFrontendOrigin,
		},
		Server: ServerConfig{
			ReadHeaderTimeout: Duration(10 * time.Second),
			IdleTimeout:       Duration(120 * time.Second),
			ShutdownTimeout:   Duration(30 * time.Second),
		},
		Proxy: ProxyConfig{
			DialTimeout:         Duration(10 * time.Second),
			TLSHandshakeTimeout: Duration(10 * time.Second),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     Duration(90 * time.Second),
		},
		Observability: ObservabilityConfig{
			Logging: LogConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    9090,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				Enabled:      false,
				SamplingRate: 1.0,
				ServiceName:  "edge",
			},
		},
	}
}

// FromEnvironment returns the default configuration with EDGE_* origin
// overrides applied. Used when no configuration file is given.
func FromEnvironment() *Config {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// applyDefaults fills in zero-valued fields from DefaultConfig.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.Origins.Docs == "" {
		cfg.Origins.Docs = def.Origins.Docs
	}
	if cfg.Origins.API == "" {
		cfg.Origins.API = def.Origins.API
	}
	if cfg.Origins.Frontend == "" {
		cfg.Origins.Frontend = def.Origins.Frontend
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = def.Server.ReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Proxy.DialTimeout == 0 {
		cfg.Proxy.DialTimeout = def.Proxy.DialTimeout
	}
	if cfg.Proxy.TLSHandshakeTimeout == 0 {
		cfg.Proxy.TLSHandshakeTimeout = def.Proxy.TLSHandshakeTimeout
	}
	if cfg.Proxy.MaxIdleConns == 0 {
		cfg.Proxy.MaxIdleConns = def.Proxy.MaxIdleConns
	}
	if cfg.Proxy.MaxIdleConnsPerHost == 0 {
		cfg.Proxy.MaxIdleConnsPerHost = def.Proxy.MaxIdleConnsPerHost
	}
	if cfg.Proxy.IdleConnTimeout == 0 {
		cfg.Proxy.IdleConnTimeout = def.Proxy.IdleConnTimeout
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = def.Observability.Logging.Level
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = def.Observability.Logging.Format
	}
	if cfg.Observability.Logging.Output == "" {
		cfg.Observability.Logging.Output = def.Observability.Logging.Output
	}
	if cfg.Observability.Metrics.Port == 0 {
		cfg.Observability.Metrics.Port = def.Observability.Metrics.Port
	}
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = def.Observability.Metrics.Path
	}
	if cfg.Observability.Tracing.SamplingRate == 0 {
		cfg.Observability.Tracing.SamplingRate = def.Observability.Tracing.SamplingRate
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = def.Observability.Tracing.ServiceName
	}
}

// applyEnvOverrides applies EDGE_* origin overrides. Environment
// variables take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvDocsOrigin); v != "" {
		cfg.Origins.Docs = v
	}
	if v := os.Getenv(EnvAPIOrigin); v != "" {
		cfg.Origins.API = v
	}
	if v := os.Getenv(EnvFrontendOrigin); v != "" {
		cfg.Origins.Frontend = v
	}
}
