package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
	sendBufferSize = 8
)

// Client is one connected dashboard console.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	remote string
	once   sync.Once
	log    *slog.Logger

	// refreshing keeps explicit refreshes single-flight per client
	refreshing atomic.Bool
}

func newClient(conn *websocket.Conn) *Client {
	remote := ""
	if conn != nil {
		remote = conn.RemoteAddr().String()
	}
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		remote: remote,
		log:    slog.Default().With("component", "stream"),
	}
}

// trySend queues a payload without blocking. Returns false when the client
// buffer is full or the connection is closing.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) pushSnapshot(snapshot domain.HealthSnapshot) {
	payload, err := json.Marshal(healthUpdate{Type: "health-update", Data: snapshot})
	if err != nil {
		c.log.Error("Failed to marshal snapshot", "error", err)
		return
	}
	if !c.trySend(payload) {
		c.log.Warn("Dropping snapshot for slow client", "remote", c.remote)
	}
}

// close releases the connection and the per-client timer loop. Safe to call
// more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump drains the send queue and runs this connection's periodic push
// timer. The ticker is released on disconnect.
func (c *Client) writePump(h *Hub) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("Websocket send failed", "remote", c.remote, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			c.pushSnapshot(h.cycler.Snapshot())
		}
	}
}

// refresh runs an out-of-band cycle and pushes the result to this client
// only. At most one refresh per client is in flight; extra requests while
// one runs are dropped.
func (c *Client) refresh(h *Hub) {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.log.Debug("Refresh already in flight", "remote", c.remote)
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		c.pushSnapshot(h.cycler.RunCycle(context.Background()))
	}()
}

// readPump consumes client messages until disconnect.
func (c *Client) readPump(h *Hub) {
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.log.Debug("Ignoring malformed client message", "remote", c.remote)
			continue
		}

		if req.Type == msgRequestHealth {
			c.refresh(h)
		}
	}
}
