package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fridgetracker/internal/model"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// watchRequest is the only message clients send: {"watch":"elisa"} narrows
// item updates to one household, {"watch":""} widens them again.
type watchRequest struct {
	Watch *string `json:"watch"`
}

// Client is one connected app. Item updates for households other than the
// watched one are not delivered; everything else always is.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	mu      sync.RWMutex
	watched model.Household
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Watch restricts item updates to h. The zero household means all of them.
func (c *Client) Watch(h model.Household) {
	c.mu.Lock()
	c.watched = h
	c.mu.Unlock()
}

func (c *Client) wants(msg Message) bool {
	if msg.Household == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watched == "" || c.watched == msg.Household
}

// Enqueue queues a message for this client only. It reports false when the
// buffer is full.
func (c *Client) Enqueue(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(data)
	}
}

// handle applies a watch request. Anything else is ignored.
func (c *Client) handle(data []byte) {
	var req watchRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Watch == nil {
		return
	}
	if *req.Watch == "" {
		c.Watch("")
		return
	}
	if h, err := model.ParseHousehold(*req.Watch); err == nil {
		c.Watch(h)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
