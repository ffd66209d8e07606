package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Handler upgrades HTTP requests to WebSocket connections and drives each
// connection through the registry: Open on upgrade, Message per inbound
// frame, Close when the read side ends.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	clock    clockwork.Clock
}

func NewHandler(registry *Registry, checkOrigin func(*http.Request) bool, clock clockwork.Clock) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clock: clock,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.WarnContext(r.Context(), "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	c := h.registry.NewConnection(newGorillaTransport(conn, h.clock), r.RemoteAddr)
	if err := h.registry.Open(ctx, c); err != nil {
		h.registry.Close(ctx, c)
		return
	}
	defer h.registry.Close(ctx, c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read ended", "conn_id", c.ID(), "error", err)
			}
			return
		}
		h.registry.Message(ctx, c, payload)
	}
}
