package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is pushed to every connected browser when the feed changes.
type Event struct {
	Type   string `json:"type"` // "post_created" or "post_liked"
	PostID string `json:"postId"`
	Likes  int    `json:"likes,omitempty"`
	Author string `json:"author,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Hub maintains the set of active clients and broadcasts feed events.
type Hub struct {
	// Registered clients.
	Clients map[*Client]bool

	// Outbound feed events fanned out to every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			log.Printf("WebSocket client registered for user %s. Total connections: %d", client.UserID, len(h.Clients))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				log.Printf("WebSocket client unregistered for user %s. Remaining connections: %d", client.UserID, len(h.Clients))
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.RLock()
			for client := range h.Clients {
				select {
				case client.Send <- message:
				default:
					log.Printf("Broadcast send buffer full for client of user %s", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a feed event for broadcast. Events are dropped rather than
// blocking a request handler when the hub is backed up.
func (h *Hub) Publish(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal feed event: %v", err)
		return
	}

	select {
	case h.Broadcast <- payload:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing feed event %q. Hub might be busy or blocked.", event.Type)
	}
}
