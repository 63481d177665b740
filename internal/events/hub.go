// Package events pushes draw session events to presentation clients over websockets.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"prizedraw/internal/models"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	bufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session events out to every connected client.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	broadcast chan models.SessionEvent
}

// NewHub creates a Hub. Run must be started for events to be delivered.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]bool),
		broadcast: make(chan models.SessionEvent, bufferSize),
	}
}

// Notify queues an event without blocking. Events are dropped when the queue is full.
func (h *Hub) Notify(event models.SessionEvent) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warningf("Dropping %s event, broadcast queue full", event.Type)
	}
}

// Run delivers queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				logger.Errorf("Failed to marshal %s event: %v", event.Type, err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					logger.Warningf("Client %s is too slow, dropping %s event", c.conn.RemoteAddr(), event.Type)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events to it until the
// client disconnects.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, bufferSize)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	logger.Infof("Presentation client connected from %s", conn.RemoteAddr())

	go h.writeLoop(c)

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Errorf("Failed to write message: %v", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if err := c.conn.Close(); err != nil {
		logger.Errorf("Failed to close connection: %v", err)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
