package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fabtrak/edge/internal/observability"
)

// RequestID returns a middleware that assigns each request a uuid for
// log correlation. The id lives in the context only: it is never added
// to the forwarded request or the relayed response, which must stay
// byte-identical to what the client and origin exchanged.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.ContextWithRequestID(r.Context(), uuid.NewString())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
