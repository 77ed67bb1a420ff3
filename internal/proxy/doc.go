// Package proxy forwards requests to the origin chosen by the routing
// table and relays responses verbatim.
//
// Each request is a single linear pass: select origin, build the target
// URL from the origin base plus the original path and query, issue the
// outbound request with the original method, headers, and streamed
// body, then copy the response (status, headers, body) back unchanged.
//
// Failure handling is deliberately fail-fast: an unreachable origin
// surfaces as a 502 with a generic body, with no retry and no fallback
// to another origin. The outbound request carries the incoming
// request's context, so a client disconnect cancels the in-flight
// upstream call.
//
// WebSocket upgrades are relayed over a dedicated bidirectional bridge,
// since upgrade semantics cannot pass through a RoundTripper.
package proxy
