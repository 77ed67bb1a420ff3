package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/fabtrak/edge/internal/observability"
	"github.com/fabtrak/edge/internal/router"
)

// websocketRelay handles WebSocket upgrades, which cannot pass through
// a RoundTripper. It dials the selected origin, upgrades the client
// connection, and relays messages in both directions so upgrade traffic
// keeps the same selection rules as plain HTTP.
type websocketRelay struct {
	logger    observability.Logger
	metrics   *observability.Metrics
	transport http.RoundTripper
}

// upgrader upgrades client connections. Origin checks are the upstream
// application's concern, matching the passthrough contract.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// isWebSocketUpgrade reports whether the request asks for a WebSocket
// upgrade.
func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// relay dials the origin, upgrades the client, and shuttles messages
// until either side closes.
func (wr *websocketRelay) relay(
	w http.ResponseWriter, r *http.Request, origin router.Origin, base string,
) {
	backendURL, err := wr.backendWSURL(base, r)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	dialer := websocket.Dialer{}
	if t, ok := wr.transport.(*http.Transport); ok && t.TLSClientConfig != nil {
		dialer.TLSClientConfig = t.TLSClientConfig.Clone()
	}

	backendConn, resp, dialErr := dialer.DialContext(
		r.Context(), backendURL, wr.requestHeaders(r),
	)
	if dialErr != nil {
		wr.handleDialError(w, resp, dialErr)
		if wr.metrics != nil {
			wr.metrics.RecordUpstreamError(string(origin))
		}
		return
	}
	defer backendConn.Close()
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	clientConn, upgradeErr := upgrader.Upgrade(w, r, wr.responseHeaders(resp))
	if upgradeErr != nil {
		wr.logger.Debug("websocket client upgrade failed",
			observability.Error(upgradeErr),
		)
		return
	}
	defer clientConn.Close()

	if wr.metrics != nil {
		wr.metrics.WebSocketOpened(string(origin))
	}

	sent, received := wr.shuttle(clientConn, backendConn)

	if wr.metrics != nil {
		wr.metrics.WebSocketClosed(string(origin), sent, received)
	}
}

// handleDialError forwards the origin's handshake error response to the
// client, or a generic Bad Gateway if no response is available.
func (wr *websocketRelay) handleDialError(
	w http.ResponseWriter, resp *http.Response, dialErr error,
) {
	if resp != nil {
		defer resp.Body.Close()
		copyHeader(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
	} else {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}
	wr.logger.Debug("websocket origin dial failed",
		observability.Error(dialErr),
	)
}

// shuttle copies messages between the client and origin connections.
// Returns counts of messages sent to the client and received from it.
func (wr *websocketRelay) shuttle(
	clientConn, backendConn *websocket.Conn,
) (sent int64, received int64) {
	errCh := make(chan error, 2)
	var sentCount, receivedCount int64

	// Origin -> client
	go func() {
		for {
			msgType, msg, readErr := backendConn.ReadMessage()
			if readErr != nil {
				_ = clientConn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				errCh <- readErr
				return
			}
			sentCount++
			if writeErr := clientConn.WriteMessage(msgType, msg); writeErr != nil {
				errCh <- writeErr
				return
			}
		}
	}()

	// Client -> origin
	go func() {
		for {
			msgType, msg, readErr := clientConn.ReadMessage()
			if readErr != nil {
				_ = backendConn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				errCh <- readErr
				return
			}
			receivedCount++
			if writeErr := backendConn.WriteMessage(msgType, msg); writeErr != nil {
				errCh <- writeErr
				return
			}
		}
	}()

	<-errCh

	return sentCount, receivedCount
}

// backendWSURL constructs the WebSocket URL for the selected origin,
// preserving path and query.
func (wr *websocketRelay) backendWSURL(base string, r *http.Request) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}

	backendURL := scheme + "://" + u.Host + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		backendURL += "?" + r.URL.RawQuery
	}

	return backendURL, nil
}

// requestHeaders builds headers to forward to the origin, excluding the
// upgrade and WebSocket protocol headers gorilla manages itself.
func (wr *websocketRelay) requestHeaders(r *http.Request) http.Header {
	header := http.Header{}
	for k, vv := range r.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-key",
			"sec-websocket-version", "sec-websocket-extensions",
			"sec-websocket-protocol":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	return header
}

// responseHeaders extracts headers from the origin's handshake response
// to forward to the client, excluding protocol headers gorilla manages.
func (wr *websocketRelay) responseHeaders(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	header := http.Header{}
	for k, vv := range resp.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-accept":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	return header
}
