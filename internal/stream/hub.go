// Package stream manages the realtime dashboard channel: one websocket
// client per operator console, each with its own push loop.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

// Cycler exposes the orchestrator operations the hub needs: the current
// snapshot, and an on-demand cycle for explicit refresh requests.
type Cycler interface {
	Snapshot() domain.HealthSnapshot
	RunCycle(ctx context.Context) domain.HealthSnapshot
}

// healthUpdate is the server-to-client message envelope.
type healthUpdate struct {
	Type string                `json:"type"`
	Data domain.HealthSnapshot `json:"data"`
}

// clientRequest is the client-to-server message envelope.
type clientRequest struct {
	Type string `json:"type"`
}

const msgRequestHealth = "request-health"

// Hub tracks connected clients. Delivery is strictly per client: each
// connection runs its own push timer and its refresh responses go to it
// alone, so no client's traffic forces a push to another. Sends are
// non-blocking: a slow client's full buffer drops the update rather than
// stalling the sender.
type Hub struct {
	cycler   Cycler
	interval time.Duration
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a hub pushing to each client on the given cadence.
func NewHub(cycler Cycler, interval time.Duration) *Hub {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &Hub{
		cycler:   cycler,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboard origins are enforced upstream
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     slog.Default().With("component", "stream"),
		clients: make(map[*Client]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the connection and serves it until disconnect. The
// latest snapshot is pushed immediately on connect.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn)
	h.register(client)
	h.log.Info("Client connected", "remote", client.remote)

	client.pushSnapshot(h.cycler.Snapshot())

	go client.writePump(h)
	client.readPump(h)

	h.unregister(client)
	client.close()
	h.log.Info("Client disconnected", "remote", client.remote)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}
