package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig validates a loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if err := validateListen(cfg.Listen); err != nil {
		return err
	}

	origins := []struct {
		name  string
		value string
	}{
		{"docs", cfg.Origins.Docs},
		{"api", cfg.Origins.API},
		{"frontend", cfg.Origins.Frontend},
	}
	for _, o := range origins {
		if err := validateOrigin(o.name, o.value); err != nil {
			return err
		}
	}

	m := cfg.Observability.Metrics
	if m.Enabled {
		if m.Port <= 0 || m.Port > 65535 {
			return fmt.Errorf("%w: metrics port %d out of range", ErrInvalidConfig, m.Port)
		}
		if !strings.HasPrefix(m.Path, "/") {
			return fmt.Errorf("%w: metrics path %q must start with /", ErrInvalidConfig, m.Path)
		}
	}

	t := cfg.Observability.Tracing
	if t.Enabled && t.SamplingRate < 0 {
		return fmt.Errorf("%w: tracing sampling rate must be >= 0", ErrInvalidConfig)
	}

	return nil
}

// validateListen checks that the listen address is a host:port pair.
func validateListen(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: listen address %q: %v", ErrInvalidConfig, addr, err)
	}
	return nil
}

// validateOrigin checks that an origin is an absolute http(s) base URL
// without path, query, or fragment. Target URLs are built by appending
// the request path to the origin, so any trailing path would corrupt
// the path-preservation contract.
func validateOrigin(name, origin string) error {
	if origin == "" {
		return fmt.Errorf("%w: %s origin is empty", ErrInvalidConfig, name)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%w: %s origin %q: %v", ErrInvalidConfig, name, origin, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s origin %q must use http or https", ErrInvalidConfig, name, origin)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s origin %q has no host", ErrInvalidConfig, name, origin)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: %s origin %q must be a bare base URL", ErrInvalidConfig, name, origin)
	}

	return nil
}
