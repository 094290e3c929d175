package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
	sessionIDKey
)

// WithRequestID returns ctx carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID in ctx, or "".
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithUserID tags every record logged with ctx by the acting user.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the user ID in ctx, or "".
func UserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

// WithSessionID tags records with an assistant session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// contextAttrs lists the non-empty context values as log attributes.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, kv := range [...]struct {
		name string
		key  ctxKey
	}{
		{"request_id", requestIDKey},
		{"user_id", userIDKey},
		{"session_id", sessionIDKey},
	} {
		if v := stringValue(ctx, kv.key); v != "" {
			attrs = append(attrs, slog.String(kv.name, v))
		}
	}
	return attrs
}
