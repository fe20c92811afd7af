package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/profitpulse/backend/pkg/logger"
)

// client is one websocket subscriber. The connection must never see two
// concurrent writers, so every write goes through the client's mutex.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

// Hub fans artifact-reload events out to websocket subscribers. Clients
// receive small JSON events; they are expected to refetch through the
// REST API after a reload notice.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
	logger  *logger.Logger

	upgrader websocket.Upgrader
}

// ReloadEvent is the message sent when a new artifact set goes live.
type ReloadEvent struct {
	Event       string    `json:"event"`
	GeneratedAt time.Time `json:"generated_at"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// read-only data service, no credentialed state to protect
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and registers the subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &client{conn: conn}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("subscribers", count).Debug("websocket subscriber connected")

	// Drain reads so close frames and pings are processed; drop the
	// client when the connection dies.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends the event to every subscriber, dropping any that fail.
// Concurrent broadcasts are safe: each client serializes its writes.
func (h *Hub) Broadcast(event ReloadEvent) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for _, c := range clients {
		if err := c.writeJSON(event, deadline); err != nil {
			h.drop(c.conn)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
