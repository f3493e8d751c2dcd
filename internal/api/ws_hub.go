package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/merchant-engine/internal/metrics"
	"github.com/atmx/merchant-engine/internal/session"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// WSHub manages WebSocket connections and pushes session events to every
// connected client. All writes happen on the Run goroutine.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is done, then
// closes every client.
func (h *WSHub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.drop(conn)
			}
			return

		case conn := <-h.register:
			h.clients[conn] = true
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			for conn := range h.clients {
				h.write(conn, websocket.TextMessage, msg)
			}

		case <-ticker.C:
			for conn := range h.clients {
				h.write(conn, websocket.PingMessage, nil)
			}
		}
	}
}

func (h *WSHub) write(conn *websocket.Conn, kind int, msg []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(kind, msg); err != nil {
		h.drop(conn)
	}
}

func (h *WSHub) drop(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

// Broadcast sends an event to all connected clients. Events are dropped
// while the buffer is full.
func (h *WSHub) Broadcast(e session.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("ws encode event", "err", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// Forward broadcasts every event from events until the channel closes or
// ctx is done.
func (h *WSHub) Forward(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(e)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: detect disconnects and extend the deadline on pong.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
