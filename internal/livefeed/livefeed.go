// Package livefeed pushes dashboard summaries to websocket clients. Each
// client gets the current summary on connect and a fresh one whenever the
// dataset changes.
package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linnemanlabs/go-core/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// clients only send control frames
	maxMessageSize = 512

	sendBuffer = 4

	DefaultInterval = 500 * time.Millisecond
)

// SnapshotFunc produces the payload broadcast to clients.
type SnapshotFunc func(ctx context.Context) (any, error)

// Message is the envelope written to clients.
type Message struct {
	Type    string `json:"type"`
	Summary any    `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options configure a Hub.
type Options struct {
	// Interval coalesces change notifications: at most one broadcast is sent
	// per interval. Defaults to DefaultInterval.
	Interval time.Duration

	// OnClients is called with the client count whenever it changes.
	OnClients func(n int)

	// CheckOrigin overrides the websocket same-origin check.
	CheckOrigin func(r *http.Request) bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and broadcasts snapshots to them.
type Hub struct {
	snapshot  SnapshotFunc
	logger    log.Logger
	interval  time.Duration
	onClients func(int)
	upgrader  websocket.Upgrader
	notify    chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// New creates a Hub. Run must be started for change notifications to reach
// clients.
func New(snapshot SnapshotFunc, logger log.Logger, opts Options) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Hub{
		snapshot:  snapshot,
		logger:    logger,
		interval:  opts.Interval,
		onClients: opts.OnClients,
		upgrader:  websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		notify:    make(chan struct{}, 1),
		clients:   make(map[*client]struct{}),
	}
}

// Notify schedules a broadcast. It never blocks.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run broadcasts on change notifications until ctx is done, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		h.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.notify:
			if fire == nil {
				timer = time.NewTimer(h.interval)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			h.broadcast(ctx)
		}
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	c.send <- h.message(ctx)

	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Info(ctx, "live feed client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	h.logger.Info(ctx, "live feed client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) message(ctx context.Context) []byte {
	msg := Message{Type: "summary"}
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.logger.Error(ctx, err, "live feed snapshot failed")
		msg = Message{Type: "error", Error: err.Error()}
	} else {
		msg.Summary = snap
	}

	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, err, "live feed encode failed")
		b, _ = json.Marshal(Message{Type: "error", Error: "encode summary"})
	}
	return b
}

func (h *Hub) broadcast(ctx context.Context) {
	if h.Clients() == 0 {
		return
	}
	b := h.message(ctx)

	h.mu.Lock()
	var dropped int
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			// slow client, the write pump closes the connection
			delete(h.clients, c)
			close(c.send)
			dropped++
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.logger.Warn(ctx, "dropped slow live feed clients", "count", dropped)
		h.clientsChanged(n)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.clientsChanged(n)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.clientsChanged(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	had := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if had > 0 {
		h.clientsChanged(0)
	}
}

func (h *Hub) clientsChanged(n int) {
	if h.onClients != nil {
		h.onClients(n)
	}
}

// readPump discards client frames and returns when the connection fails.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump owns all writes to the connection. It closes the connection
// when send is closed or a write fails.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
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
