package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
)

// TabEvents receives tab lifecycle events streamed by the browser. The gate
// implements it.
type TabEvents interface {
	TabNavigated(tabID int, newURL string)
	TabClosed(tabID int)
}

// TabEvent is one tab lifecycle event from the browser extension.
type TabEvent struct {
	Type  string `json:"type"` // "tab_navigated" or "tab_closed"
	TabID int    `json:"tab_id"`
	URL   string `json:"url,omitempty"`
}

// Client is one connected browser event channel.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	events     TabEvents
	remoteAddr string
	writeMu    sync.Mutex
	closed     atomic.Bool
	ctx        context.Context
	ctxCancel  context.CancelFunc
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, events TabEvents, remoteAddr string) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		events:     events,
		remoteAddr: remoteAddr,
		ctx:        clientCtx,
		ctxCancel:  cancel,
	}
}

// ReadPump consumes tab events from the browser and feeds them to the gate.
func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("remote", c.remoteAddr))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			slog.Warn("failed to set read deadline in pong handler",
				slog.String("error", err.Error()),
				slog.String("remote", c.remoteAddr))
			return err
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("remote", c.remoteAddr))
			}
			break
		}

		var event TabEvent
		if err := json.Unmarshal(message, &event); err != nil {
			slog.Warn("invalid tab event",
				slog.String("error", err.Error()),
				slog.String("remote", c.remoteAddr))
			continue
		}

		switch event.Type {
		case "tab_navigated":
			c.events.TabNavigated(event.TabID, event.URL)
		case "tab_closed":
			c.events.TabClosed(event.TabID)
		default:
			slog.Warn("unknown tab event type",
				slog.String("type", event.Type),
				slog.String("remote", c.remoteAddr))
		}
	}
}

// WritePump pumps tab commands from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case command, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, command); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline",
			slog.String("error", err.Error()),
			slog.String("remote", c.remoteAddr))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
