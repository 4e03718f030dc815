package middleware

import (
	"context"
	"net/http"
	"strings"
)

type userIDContextKey struct{}

// UserIDKey stores the authenticated user identifier in the request context.
var UserIDKey = userIDContextKey{}

// Identity extracts the caller identity set by the upstream auth proxy.
// Requests without the header pass through with an empty identity; handlers
// that require a user reject those themselves.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user ID, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
