package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/shelflife/internal/event"
)

// Hub maintains the set of active WebSocket clients and broadcasts bus
// events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Run forwards events from sub until ctx ends or sub is closed. Fetch
// results and no-result outcomes answer a single caller and are not
// broadcast.
func (h *Hub) Run(ctx context.Context, sub *event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if broadcastable(e) {
				h.Broadcast(event.Describe(e))
			}
		}
	}
}

func broadcastable(e event.Event) bool {
	switch e.(type) {
	case event.ItemsFetched, event.ItemFetched, event.ListsFetched, event.ListFetched,
		event.PhotosFetched, event.NoResult:
		return false
	default:
		return true
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg event.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
