// Package monitor is an optional, read-only debugging bridge: it
// republishes tracker snapshots to any number of WebSocket clients for
// local visualization. It has no write path back into the cache or the
// connection processor, and nothing in the streaming/tracking path
// depends on it.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"betfair-streamcache/internal/tracker"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	clientSendBuf  = 256
)

// Bridge manages connected WebSocket clients and republishes every
// tracker.Snapshot it is fed to all of them.
type Bridge struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	mu         sync.RWMutex
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

type client struct {
	bridge *Bridge
	conn   *websocket.Conn
	send   chan []byte
}

// NewBridge creates a Bridge. checkOrigin decides whether to accept an
// upgrade request from a given Origin header; pass nil to accept any
// origin (fine for local debugging, not for a public deployment).
func NewBridge(logger *slog.Logger, checkOrigin func(*http.Request) bool) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Bridge{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, clientSendBuf),
		logger:     logger.With("component", "monitor-bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Run services client registration and broadcast until done is closed.
func (b *Bridge) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c] = true
			b.mu.Unlock()
		case c := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.send)
			}
			b.mu.Unlock()
		case msg := <-b.broadcast:
			b.mu.RLock()
			for c := range b.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(b.clients, c)
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Publish republishes snap to every connected client.
func (b *Bridge) Publish(snap *tracker.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error("monitor: failed to marshal snapshot", "error", err)
		return
	}
	select {
	case b.broadcast <- data:
	default:
		b.logger.Warn("monitor: broadcast channel full, dropping snapshot")
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams snapshots
// to it until the client disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("monitor: upgrade failed", "error", err)
		return
	}

	c := &client{bridge: b, conn: conn, send: make(chan []byte, clientSendBuf)}
	b.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (c *client) readPump() {
	defer func() {
		c.bridge.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.bridge.logger.Error("monitor: websocket error", "error", err)
			}
			break
		}
		// Read-only bridge: client messages are ignored.
	}
}
