package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/chepyr/go-task-sync/shared"
	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/gorilla/websocket"
)

// WSHub tracks the websocket connections of each user and pushes
// task change events (insert/update/delete) to the task's owner.
type WSHub struct {
	connections map[string]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[string]map[*websocket.Conn]bool)}
}

func (h *WSHub) BroadcastTaskChange(kind string, task *models.Task) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[task.OwnerID.String()]
	if !exists {
		return
	}

	message, err := json.Marshal(map[string]any{
		"kind": kind,
		"task": task,
	})
	if err != nil {
		log.Printf("Failed to marshal task change: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Adjust for production (e.g., check specific origins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.WSHub.mutex.Lock()
	if h.WSHub.connections[userID] == nil {
		h.WSHub.connections[userID] = make(map[*websocket.Conn]bool)
	}
	h.WSHub.connections[userID][conn] = true
	h.WSHub.mutex.Unlock()

	// the feed is push-only; the read loop exists to notice disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.WSHub.mutex.Lock()
			delete(h.WSHub.connections[userID], conn)
			h.WSHub.mutex.Unlock()
			conn.Close()
			return
		}
	}
}
