// Package livereload pushes reload notifications to connected development
// clients over a websocket.
package livereload

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// DefaultPath is where the development server mounts the hub.
const DefaultPath = "/_modfed/reload"

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// message is the frame the client-side reload script understands.
type message struct {
	Type string `json:"type"`
	Data struct {
		Reload bool `json:"reload"`
	} `json:"data"`
}

func reloadMessage() message {
	var msg message
	msg.Type = "ok"
	msg.Data.Reload = true
	return msg
}

type client struct {
	conn    *websocket.Conn
	writeCh chan message
}

// Hub fans reload notifications out to every connected client.
type Hub struct {
	logger *log.Logger

	mu    sync.Mutex
	conns map[*client]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client goes away. Inbound frames are read only to keep the connection
// and its pong handler alive.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn, writeCh: make(chan message, 8)}
	h.register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-c.writeCh:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.unregister(c)
		<-writerDone
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	<-writerDone
}

// Broadcast tells every connected client to reload. Delivery is best
// effort: a client that cannot keep up misses the frame and is reaped by
// its ping timeout.
func (h *Hub) Broadcast() {
	msg := reloadMessage()

	h.mu.Lock()
	n := len(h.conns)
	for c := range h.conns {
		select {
		case c.writeCh <- msg:
		default:
		}
	}
	h.mu.Unlock()

	if n > 0 {
		h.logger.Debug("reload broadcast", "clients", n)
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every connected client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.writeCh)
	}
	h.mu.Unlock()
}
