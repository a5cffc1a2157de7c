package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"waypoint/internal/observability"
)

// TabCommand is a command pushed to the browser extension, which executes it
// against the tabs API.
type TabCommand struct {
	Type  string `json:"type"` // "navigate"
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
}

// Hub maintains the connected browser channels and fans tab commands out to
// them. Normally one browser is connected, but reconnects can briefly
// overlap, so the hub keeps a set.
type Hub struct {
	clients map[*Client]bool

	// Outbound commands
	commands chan []byte

	// Register client
	register chan *Client

	// Unregister client
	unregister chan *Client

	// Shutdown signal
	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		commands:   make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			observability.BrowserConnectionsActive.Inc()
			slog.Info("browser connected", slog.String("remote", client.remoteAddr))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case command := <-h.commands:
			for client := range h.clients {
				select {
				case client.send <- command:
				default:
					// Client's send buffer is full, close connection
					h.closeClientSend(client)
					delete(h.clients, client)
					observability.BrowserConnectionsActive.Dec()
				}
			}
		}
	}
}

// Navigate pushes a tab-navigate command to the browser. It satisfies the
// gate's TabController. A command with no browser connected is dropped; the
// tab in question will hit the gate again on its next navigation anyway.
func (h *Hub) Navigate(tabID int, url string) {
	data, err := json.Marshal(TabCommand{Type: "navigate", TabID: tabID, URL: url})
	if err != nil {
		slog.Error("failed to marshal tab command", slog.String("error", err.Error()))
		return
	}

	select {
	case h.commands <- data:
		observability.TabCommandsSent.WithLabelValues("navigate").Inc()
	case <-h.done:
	}
}

// Register registers a client with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// unregisterClient safely removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.closeClientSend(client)
		observability.BrowserConnectionsActive.Dec()
		slog.Info("browser disconnected", slog.String("remote", client.remoteAddr))
	}
}

// closeClientSend safely closes a client's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for client := range h.clients {
		h.closeClientSend(client)
		slog.Info("closed browser connection", slog.String("remote", client.remoteAddr))
	}

	slog.Info("hub shutdown complete")
}
