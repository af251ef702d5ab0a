package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// Greeter returns the messages a client receives right after connecting.
type Greeter func() []Message

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients.
func HandleWebSocket(hub *Hub, greet Greeter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // the PWA is served from a different origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn)
		if h, err := model.ParseHousehold(r.URL.Query().Get("household")); err == nil {
			client.Watch(h)
		}
		if greet != nil {
			for _, msg := range greet() {
				client.Enqueue(msg)
			}
		}
		client.Run(r.Context())
	}
}
