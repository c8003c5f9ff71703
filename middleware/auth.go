package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AuthMiddleware enforces the optional static bearer token named by
// API_KEY (spec.md §6). When apiKey is empty, every request passes
// through unauthenticated — the bridge has no notion of per-caller
// identity beyond this single shared secret.
type AuthMiddleware struct {
	logger zerolog.Logger
	apiKey string
}

func NewAuthMiddleware(logger zerolog.Logger, apiKey string) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, apiKey: apiKey}
}

func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	if am.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token != am.apiKey {
			am.logger.Debug().Str("path", r.URL.Path).Msg("rejecting request: missing or invalid bearer token")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing or invalid authentication"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
