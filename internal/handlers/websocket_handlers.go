package handlers

import (
	"log"
	"net/http"

	"lilypad/internal/middleware"
	"lilypad/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin pages only; the cookie already gates who connects.
		return true
	},
}

// HandleWebSocket upgrades an authenticated request to the live feed. The
// route sits behind the auth gate, so the user is already in the context.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for user %s: %v", user.ID, err)
			return
		}

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: user.ID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		s.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
