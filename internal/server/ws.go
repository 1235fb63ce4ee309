package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is one event pushed to websocket clients.
type Message struct {
	Type       string            `json:"type"` // "gesture" or "transition"
	Gesture    gesture.Gesture   `json:"gesture"`
	Position   detector.Point3D  `json:"position"`
	Rotation   detector.Point3D  `json:"rotation"`
	State      scene.State       `json:"state"`
	Vision     bool              `json:"vision"`
	Transition *scene.Transition `json:"transition,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts gesture results and state transitions to websocket
// clients. Slow clients drop messages rather than block the publisher.
type Hub struct {
	director *scene.Director
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub creates a Hub. The director, if set, supplies the state and vision
// flag attached to each message.
func NewHub(d *scene.Director) *Hub {
	return &Hub{
		director: d,
		now:      time.Now,
		clients:  make(map[*client]struct{}),
	}
}

// Publish broadcasts a gesture result. It has the signature of a tracker
// sink.
func (h *Hub) Publish(r gesture.Result) {
	msg := Message{
		Type:     "gesture",
		Gesture:  r.Gesture,
		Position: r.Position,
		Rotation: r.Rotation,
	}
	h.broadcast(msg)
}

// PublishTransition broadcasts a state change. It has the signature of a
// director listener.
func (h *Hub) PublishTransition(t scene.Transition) {
	msg := Message{
		Type:       "transition",
		Transition: &t,
	}
	h.broadcast(msg)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	if h.director != nil {
		snap := h.director.Snapshot()
		msg.State = snap.State
		msg.Vision = snap.Vision
		if msg.Type == "transition" {
			msg.Gesture = snap.Gesture
		}
	}
	msg.Timestamp = h.now().UnixMilli()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("websocket: encode message: %v", err)
		return
	}

	h.mu.Lock()
	h.last = data
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ServeHTTP handles WebSocket upgrade requests. A new client first receives
// the most recent message, if any.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	go c.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			// Drain until the reader unregisters us.
			for range c.send {
			}
			return
		}
	}
}
