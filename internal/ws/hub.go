package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"sitecheckout/internal/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Event is pushed to every page watching a checkout session.
type Event struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Data    any    `json:"data,omitempty"`
}

type client struct {
	conn  *gws.Conn
	topic string
	mu    sync.Mutex
}

// Hub tracks websocket clients grouped by checkout session.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*client]struct{})}
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[c.topic]
	if !ok {
		set = make(map[*client]struct{})
		h.topics[c.topic] = set
	}
	set[c] = struct{}{}
	return len(set)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.topics[c.topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, c.topic)
		}
	}
	h.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.LogWarn("ws: close panic: %v", r)
		}
	}()
	_ = c.conn.Close()
}

// Clients returns how many connections watch topic.
func (h *Hub) Clients(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish sends evt to every client of topic. Clients that fail a write are dropped.
func (h *Hub) Publish(topic string, evt Event) {
	if h == nil {
		return
	}
	evt.Session = topic
	data, err := json.Marshal(evt)
	if err != nil {
		logger.LogError("ws: marshal error: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.unregister(c)
		}
	}
}

func (c *client) write(data []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ws: write panic: %v", r)
		}
	}()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(gws.TextMessage, data)
}

// Upgrader accepts any origin; CORS is enforced on the API routes.
var Upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the connection, subscribes it to topic and keeps it alive with
// pings until the peer goes away. A non-nil hello is sent first.
func (h *Hub) Serve(topic string, w http.ResponseWriter, r *http.Request, hello *Event) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.LogWarn("ws: upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, topic: topic}
	count := h.register(c)
	logger.LogInfo("ws: client connected to session %s (%d watching)", topic, count)

	if hello != nil {
		first := *hello
		first.Session = topic
		if data, err := json.Marshal(first); err == nil {
			if err := c.write(data); err != nil {
				h.unregister(c)
				return
			}
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(gws.PingMessage, nil, time.Now().Add(writeWait))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	h.unregister(c)
	logger.LogInfo("ws: client left session %s", topic)
}
