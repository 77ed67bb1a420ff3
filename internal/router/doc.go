// Package router maps request paths to upstream origins.
//
// The routing table is an ordered list of (prefix set, origin) rules,
// evaluated first match wins, with a fallback origin for everything
// else:
//
//	/docs...                  -> docs origin
//	/api..., /auth..., /admin... -> api origin
//	(anything else)           -> frontend origin
//
// Selection depends on the path only, never on method, headers, or
// body, and never fails.
package router
