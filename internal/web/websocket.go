package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamEvent is one message on the websocket event stream: the NATS topic
// the event arrived on plus its decoded payload.
type StreamEvent struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Hub fans bus events out to connected websocket clients. The Run goroutine
// owns the client set exclusively; Register, Unregister and Broadcast hand it
// work over channels, so there is no shared state to lock.
type Hub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan StreamEvent
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *websocket.Conn, 8),
		unregister: make(chan *websocket.Conn, 8),
		broadcast:  make(chan StreamEvent, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*websocket.Conn]bool)
	defer func() {
		for conn := range clients {
			conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.register:
			clients[conn] = true
		case conn := <-h.unregister:
			if clients[conn] {
				delete(clients, conn)
				conn.Close()
			}
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for conn := range clients {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					delete(clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// Broadcast never blocks; if the hub falls behind, events are dropped.
func (h *Hub) Broadcast(event StreamEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(conn)
	defer s.hub.Unregister(conn)

	// Clients only listen; the read loop just detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
