package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// EventSyncStatus carries a sync.Status after every change.
const EventSyncStatus = "sync.status"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin accepts requests without an Origin header and pages served
// from a loopback host.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type statusEvent struct {
	State syncpkg.State `json:"state"`
	syncpkg.Status
}

// StatusSource is the part of the engine the hub listens to.
type StatusSource interface {
	Status() syncpkg.Status
	Subscribe(fn syncpkg.Listener) func()
}

// WSClient is one WebSocket connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub pushes sync status changes to every connected client. A client
// whose buffer is full is dropped rather than stalling the engine.
type WSHub struct {
	source      StatusSource
	unsubscribe func()

	mu      sync.Mutex
	clients map[string]*WSClient
	closed  bool
}

// NewWSHub creates a hub subscribed to source.
func NewWSHub(source StatusSource) *WSHub {
	h := &WSHub{
		source:  source,
		clients: make(map[string]*WSClient),
	}
	h.unsubscribe = source.Subscribe(h.publish)
	return h
}

func encodeStatus(s syncpkg.Status) ([]byte, error) {
	return json.Marshal(WSEnvelope{
		Type:      EventSyncStatus,
		Data:      statusEvent{State: s.State(), Status: s},
		Timestamp: time.Now().Unix(),
	})
}

// publish runs on the engine's goroutine.
func (h *WSHub) publish(s syncpkg.Status) {
	msg, err := encodeStatus(s)
	if err != nil {
		logging.Warn("Failed to encode status event", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Warn("WebSocket client too slow, dropping", map[string]interface{}{"client_id": id})
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// register adds c and queues the current status as its first message.
func (h *WSHub) register(c *WSClient) bool {
	msg, err := encodeStatus(h.source.Status())
	if err != nil {
		logging.Warn("Failed to encode status snapshot", map[string]interface{}{"error": err.Error()})
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	c.send <- msg
	h.clients[c.id] = c
	logging.Debug("WebSocket client connected", map[string]interface{}{
		"client_id": c.id,
		"clients":   len(h.clients),
	})
	return true
}

func (h *WSHub) unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	logging.Debug("WebSocket client disconnected", map[string]interface{}{
		"client_id": c.id,
		"clients":   len(h.clients),
	})
}

// Len returns the number of connected clients.
func (h *WSHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the engine and disconnects every client.
func (h *WSHub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &WSClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// readPump keeps the read deadline fresh and answers ping actions. It
// returns when the connection closes.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("WebSocket read error", map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var msg struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			logging.Debug("Invalid WebSocket message", map[string]interface{}{"client_id": c.id})
			continue
		}
		if msg.Action == "ping" {
			c.reply(WSEnvelope{Type: "pong", Timestamp: time.Now().Unix()})
		}
	}
}

// reply queues a direct response. It gives up if the client is gone or
// its buffer is full.
func (c *WSClient) reply(env WSEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel and pings the peer.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
