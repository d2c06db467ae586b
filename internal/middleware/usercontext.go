package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bifrost-graphql/internal/logging"
	"bifrost-graphql/internal/usercontext"
)

// UserContextMiddleware deserializes the host-supplied JSON header into the
// per-request user context map. The header is injected by a trusted front
// proxy; the middleware expresses no authentication opinion. An empty header
// name disables parsing entirely.
//
// A malformed header is dropped with a warning rather than rejected: requests
// then run with no user context, and tenant-scoped tables deny access on
// their own.
func UserContextMiddleware(headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(headerName)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			var m usercontext.Map
			if err := json.Unmarshal([]byte(raw), &m); err != nil {
				logging.FromContext(r.Context()).Warn("dropping malformed user context header",
					slog.String("header", headerName),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := usercontext.WithContext(r.Context(), m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
