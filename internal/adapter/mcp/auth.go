package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// apiKeyHeader is checked when no bearer token is sent.
const apiKeyHeader = "X-API-Key"

// AuthMiddleware requires apiKey as "Authorization: Bearer <key>" or in the
// X-API-Key header. An empty apiKey disables the check.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := presentedKey(r)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "api key required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
			slog.WarnContext(r.Context(), "mcp api key rejected", "remote", r.RemoteAddr)
			writeAuthError(w, http.StatusForbidden, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		key, found := strings.CutPrefix(auth, "Bearer ")
		return key, found && key != ""
	}
	key := r.Header.Get(apiKeyHeader)
	return key, key != ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
