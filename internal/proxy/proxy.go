// Package proxy implements the passthrough request forwarder.
package proxy

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/fabtrak/edge/internal/observability"
	"github.com/fabtrak/edge/internal/router"
)

// Forwarder reproduces incoming requests against the origin selected by
// the routing table and relays the response verbatim. It performs no
// retries, no fallback to another origin, and no header rewriting: the
// hop is an internal trusted-network one, and upstream health is
// handled elsewhere.
type Forwarder struct {
	table        atomic.Pointer[router.Table]
	transport    http.RoundTripper
	logger       observability.Logger
	metrics      *observability.Metrics
	errorHandler func(http.ResponseWriter, *http.Request, error)
	websocket    *websocketRelay
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithTransport sets the outbound transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics recorder for the forwarder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithErrorHandler sets the handler invoked when the outbound request
// fails.
func WithErrorHandler(handler func(http.ResponseWriter, *http.Request, error)) Option {
	return func(f *Forwarder) {
		f.errorHandler = handler
	}
}

// defaultTransport mirrors http.DefaultTransport with compression
// negotiation turned off, matching NewTransport. The stock default
// would add Accept-Encoding to forwarded requests and unwrap gzipped
// responses.
var defaultTransport http.RoundTripper = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return t
}()

// NewForwarder creates a forwarder over the given routing table.
func NewForwarder(table *router.Table, opts ...Option) *Forwarder {
	f := &Forwarder{
		transport: defaultTransport,
		logger:    observability.NopLogger(),
	}
	f.table.Store(table)

	for _, opt := range opts {
		opt(f)
	}

	if f.errorHandler == nil {
		f.errorHandler = f.defaultErrorHandler
	}

	f.websocket = &websocketRelay{
		logger:    f.logger,
		metrics:   f.metrics,
		transport: f.transport,
	}

	return f
}

// Reload swaps the routing table. In-flight requests keep the table
// they started with.
func (f *Forwarder) Reload(table *router.Table) {
	f.table.Store(table)
}

// Table returns the current routing table.
func (f *Forwarder) Table() *router.Table {
	return f.table.Load()
}

// ServeHTTP implements http.Handler.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin, base := f.table.Load().Select(r.URL.Path)
	observability.SetOrigin(r.Context(), string(origin))

	if isWebSocketUpgrade(r) {
		f.websocket.relay(w, r, origin, base)
		return
	}

	f.forward(w, r, origin, base)
}

// forward issues the outbound request and copies the response back.
func (f *Forwarder) forward(w http.ResponseWriter, r *http.Request, origin router.Origin, base string) {
	target := targetURL(base, r)

	// The body is handed over as-is so uploads stream through without
	// buffering.
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		f.errorHandler(w, r, err)
		return
	}

	// The header set is passed through unmodified, cookies and auth
	// included.
	outReq.Header = r.Header.Clone()
	outReq.ContentLength = r.ContentLength

	// A request without a User-Agent must stay that way: the empty
	// value tells the transport to omit its Go-http-client default.
	if _, ok := outReq.Header["User-Agent"]; !ok {
		outReq.Header.Set("User-Agent", "")
	}

	resp, err := f.transport.RoundTrip(outReq)
	if err != nil {
		f.handleUpstreamError(w, r, origin, err)
		return
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(newFlushWriter(w), resp.Body); err != nil {
		// The status line is already on the wire; all that is left is
		// to log the truncated copy.
		f.logger.Debug("response copy interrupted",
			observability.String("origin", string(origin)),
			observability.Error(err),
		)
		return
	}

	// Trailers are populated only once the body has been fully read.
	for k, vv := range resp.Trailer {
		for _, v := range vv {
			w.Header().Add(http.TrailerPrefix+k, v)
		}
	}
}

// handleUpstreamError surfaces an outbound failure. Client disconnects
// are logged and dropped; everything else becomes a 502.
func (f *Forwarder) handleUpstreamError(
	w http.ResponseWriter, r *http.Request, origin router.Origin, err error,
) {
	if f.metrics != nil {
		f.metrics.RecordUpstreamError(string(origin))
	}

	if r.Context().Err() == context.Canceled {
		f.logger.Debug("client disconnected during forward",
			observability.String("path", r.URL.Path),
			observability.String("origin", string(origin)),
		)
		return
	}

	f.errorHandler(w, r, err)
}

// defaultErrorHandler writes a generic gateway failure.
func (f *Forwarder) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	f.logger.Error("upstream request failed",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = io.WriteString(w, `{"error":"bad gateway","message":"failed to reach upstream"}`)
}

// Handler returns an http.Handler for the forwarder.
func (f *Forwarder) Handler() http.Handler {
	return f
}

// targetURL builds the outbound URL: origin base plus the original path
// and query string, unchanged.
func targetURL(base string, r *http.Request) string {
	target := base + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}

// copyHeader copies all header values from src to dst.
func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// flushWriter flushes after every write so streamed responses reach the
// client without buffering.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newFlushWriter(w http.ResponseWriter) io.Writer {
	fw := flushWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.f = f
	}
	return fw
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
