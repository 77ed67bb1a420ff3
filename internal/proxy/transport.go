package proxy

import (
	"net"
	"net/http"

	"github.com/fabtrak/edge/internal/config"
)

// NewTransport builds the outbound transport from configuration. The
// transport carries no per-request timeout: a slow upstream is the
// client's problem to cancel, not the gateway's to guess.
//
// Compression negotiation is disabled: with it on, Go injects an
// Accept-Encoding header the client never sent and silently decodes
// gzipped replies, stripping Content-Encoding and Content-Length.
// Requests and responses must cross this hop byte-identical.
func NewTransport(cfg config.ProxyConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.DialTimeout.Duration(),
		}).DialContext,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout.Duration(),
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout.Duration(),
		ForceAttemptHTTP2:   true,
		DisableCompression:  true,
	}
}
