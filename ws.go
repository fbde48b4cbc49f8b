package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub pushes readings to every connected websocket client.
type wsHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	snapshot func() Reading
	log      Logger
}

func newHub(snapshot func() Reading, log Logger) *wsHub {
	return &wsHub{
		clients:  make(map[*websocket.Conn]struct{}),
		snapshot: snapshot,
		log:      log,
	}
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade error", "error", err)
		return
	}

	// Write the current reading before the client can receive broadcasts.
	h.mu.Lock()
	err = writeReading(conn, h.snapshot())
	if err == nil {
		h.clients[conn] = struct{}{}
	}
	h.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return
	}
	go h.readPump(conn)
}

// Publish implements ReadingPublisher.
func (h *wsHub) Publish(_ context.Context, r Reading) {
	h.broadcast(r)
}

func (h *wsHub) broadcast(r Reading) {
	data, err := json.Marshal(r)
	if err != nil {
		h.log.Error(err, "failed to encode reading")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.Close()
			delete(h.clients, c)
		}
	}
}

func (h *wsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *wsHub) readPump(c *websocket.Conn) {
	defer func() {
		h.remove(c)
		_ = c.Close()
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func writeReading(c *websocket.Conn, r Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.WriteMessage(websocket.TextMessage, data)
}
