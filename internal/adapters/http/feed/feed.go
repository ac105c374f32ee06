// Package feed broadcasts pipeline updates to live display clients over
// websockets.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxReadSize    = 512
	sendBuffer     = 64
	defaultHistory = 50
)

// MessageType names a feed update.
type MessageType string

const (
	TypeEventAdded     MessageType = "event_added"
	TypeEventRetracted MessageType = "event_retracted"
	TypeEventRejected  MessageType = "event_rejected"
	TypeClip           MessageType = "clip"
	TypeSummary        MessageType = "summary"
	TypeConnectivity   MessageType = "connectivity"
	TypeStats          MessageType = "stats"
	TypeProfile        MessageType = "profile"
)

// Message is one JSON frame sent to clients.
type Message struct {
	Type  MessageType  `json:"type"`
	Key   string       `json:"key,omitempty"`
	Event *model.Event `json:"event,omitempty"`
	Text  string       `json:"text,omitempty"`
	Data  any          `json:"data,omitempty"`
	Time  time.Time    `json:"time"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans messages out to every connected client. A client that cannot
// keep up is disconnected rather than slowing the publisher.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	history []Message
	maxHist int
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// overlays are served from file:// and browser-source origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     logger.Nop(),
		clients: make(map[*client]struct{}),
		maxHist: defaultHistory,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish sends m to every client and remembers it for late joiners.
func (h *Hub) Publish(m Message) {
	if m.Time.IsZero() {
		m.Time = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.maxHist > 0 {
		h.history = append(h.history, m)
		if len(h.history) > h.maxHist {
			h.history = h.history[len(h.history)-h.maxHist:]
		}
	}
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.dropLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "feed upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan Message, sendBuffer+h.maxHist)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	for _, m := range h.history {
		c.send <- m
	}
	h.clients[c] = struct{}{}
	metrics.UpdateFeedClients(len(h.clients))
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.UpdateFeedClients(len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// readPump only watches for the client going away; clients never send.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(ctx, "feed client read failed", logger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
