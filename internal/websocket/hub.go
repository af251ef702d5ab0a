package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// Entities carried in Message.Entity.
const (
	EntityItem      = "item"
	EntityInventory = "inventory"
	EntitySync      = "sync"
	EntityBackup    = "backup"
)

// Message represents a real-time change notification broadcast to all clients.
type Message struct {
	Type      string          `json:"type"`
	Entity    string          `json:"entity"`
	Action    string          `json:"action"`
	Household model.Household `json:"household,omitempty"`
	Storage   model.Storage   `json:"storage,omitempty"`
	ID        int64           `json:"id,omitempty"`
	Extra     map[string]any  `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// ItemMessage announces a change to one item of a bucket.
func ItemMessage(action string, b model.Bucket, id int64) Message {
	msg := NewMessage(EntityItem, action, id, nil)
	msg.Household = b.Household
	msg.Storage = b.Storage
	return msg
}

// InventoryMessage announces that the whole inventory was replaced.
func InventoryMessage(action string, items int) Message {
	return NewMessage(EntityInventory, action, 0, map[string]any{"items": items})
}

// StateMessage reports a component state (sync or backup) to clients.
func StateMessage(entity string, state any) Message {
	return NewMessage(entity, "status", 0, map[string]any{"status": state})
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
// It satisfies the handler package's Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
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

// Broadcast sends a message to every client interested in it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping message", "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
