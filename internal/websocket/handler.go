package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. originPatterns restricts the
// allowed Origin hosts; empty means same-origin only.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("websocket accept failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		client := NewClient(hub, conn)
		hub.logger.Debug("client connected", "remote", r.RemoteAddr)
		client.Run(r.Context())
		hub.logger.Debug("client disconnected", "remote", r.RemoteAddr)
	}
}
