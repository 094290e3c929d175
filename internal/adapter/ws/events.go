package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/taskpad/internal/middleware"
	"github.com/Strob0t/taskpad/internal/port/broadcast"
)

// BroadcastEvent marshals a typed event and sends it to the user in ctx.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.BroadcastToUser(ctx, middleware.UserIDFromContext(ctx), Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

var _ broadcast.Broadcaster = (*Hub)(nil)
