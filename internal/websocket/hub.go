package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/session"
)

// Hub maintains the set of active clients and routes session events to them
type Hub struct {
	// Registered clients by connection id
	clients map[string]*Client

	// Unregister requests from clients
	unregister chan *Client

	// Callbacks
	onDisconnect func(c *Client)

	logger *zap.Logger
	mu     sync.RWMutex
	done   chan struct{}
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "hub")),
	}
}

// SetOnDisconnect sets the callback for when a client goes away
func (h *Hub) SetOnDisconnect(callback func(c *Client)) {
	h.onDisconnect = callback
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			if ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			client.logger.Debug("client unregistered")

			if ok && h.onDisconnect != nil {
				go h.onDisconnect(client)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// add registers a client before its pumps start so no event addressed to
// it can be missed
func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	client.logger.Debug("client registered", zap.String("name", client.name))
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver sends a session event to one connection
func (h *Hub) Deliver(connID string, ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	h.deliver(connID, data)
}

func (h *Hub) deliver(connID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("send buffer full, dropping message", zap.String("conn", connID))
	}
}
