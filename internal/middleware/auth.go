package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Strob0t/taskpad/internal/domain/user"
)

// TokenValidator verifies an access token and returns its claims.
type TokenValidator interface {
	ValidateAccessToken(token string) (*user.TokenClaims, error)
}

// publicPaths are exempt from authentication. /mcp carries its own API key check.
var publicPaths = map[string]bool{
	"/health":               true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
	"/mcp":                  true,
}

// Auth returns middleware that validates bearer JWTs.
// When authEnabled is false, every request acts as the local user.
func Auth(tokens TokenValidator, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user.Local())))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			var token string
			if r.URL.Path == "/ws" {
				// Browsers cannot set headers on WebSocket upgrades.
				token = r.URL.Query().Get("token")
			} else if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				token = strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
			}
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
