package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vizintel/api/internal/logging"
	"vizintel/api/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

type client struct {
	conn      *websocket.Conn
	accountID string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub tracks websocket clients by room. A room is named after an account id
// and only that account may join it.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      logging.Logger
	metrics  *metrics.Metrics
}

// NewHub builds a hub. allowedOrigin restricts the websocket handshake; an
// empty value accepts any origin.
func NewHub(allowedOrigin string, log logging.Logger, m *metrics.Metrics) *Hub {
	h := &Hub{
		rooms:   map[string]map[*client]struct{}{},
		clients: map[*client]struct{}{},
		log:     log.With("module", "live"),
		metrics: m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "" || origin == "" || origin == allowedOrigin
		},
	}
	return h
}

// Serve upgrades the request and blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		conn:      conn,
		accountID: accountID,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.LiveConnections.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	if members, ok := h.rooms[c.accountID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.accountID)
		}
	}
	h.mu.Unlock()
	c.close()
	_ = c.conn.Close()
	h.metrics.LiveConnections.Dec()
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.accountID]
	if !ok {
		members = map[*client]struct{}{}
		h.rooms[c.accountID] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(ctx, "websocket closed", "account_id", c.accountID, "error", err)
			}
			return
		}
		var msg Event
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, Event{Name: EventError, Data: "malformed message"})
			continue
		}
		if msg.Name != EventJoin {
			continue
		}
		if msg.Room != c.accountID {
			h.log.Warn(ctx, "foreign room join refused", "account_id", c.accountID, "room", msg.Room)
			h.reply(c, Event{Name: EventError, Data: "cannot join another account's room"})
			continue
		}
		h.join(c)
		h.reply(c, Event{Name: EventJoined, Room: c.accountID})
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) reply(c *client, event Event) {
	frame, err := encode(event)
	if err != nil {
		return
	}
	h.offer(c, frame)
}

// offer queues frame without blocking. A full buffer drops the frame.
func (h *Hub) offer(c *client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Deliver sends an encoded frame to every client joined to room.
func (h *Hub) Deliver(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[room] {
		if h.offer(c, frame) {
			delivered++
			h.metrics.LiveDelivered.Inc()
		} else {
			h.metrics.LiveDropped.Inc()
		}
	}
	return delivered
}

// Members reports how many clients joined room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close drops every connection. Serve calls return as their reads fail.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
