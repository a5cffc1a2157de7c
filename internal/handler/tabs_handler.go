package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	ws "waypoint/internal/websocket"

	"github.com/gorilla/websocket"
)

// TabsHandler upgrades the browser extension's event channel. Tab lifecycle
// events flow in, tab commands flow out.
type TabsHandler struct {
	hub      *ws.Hub
	events   ws.TabEvents
	upgrader websocket.Upgrader
}

// NewTabsHandler creates a new tabs channel handler
func NewTabsHandler(hub *ws.Hub, events ws.TabEvents, allowedOrigins string) *TabsHandler {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &TabsHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Extension background contexts may omit the header
					return true
				}
				for _, o := range origins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *TabsHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context dies when this handler returns; the connection outlives it.
	client := ws.NewClient(context.Background(), h.hub, conn, h.events, r.RemoteAddr)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
