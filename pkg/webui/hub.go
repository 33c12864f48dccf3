// Package webui serves control state to browsers over HTTP and websockets.
package webui

import (
	"encoding/json"
	"sync"

	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// Message types pushed to websocket clients.
const (
	TypeControls  = "controls"
	TypeControl   = "control"
	TypeAttribute = "attribute"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type     string     `json:"type"`
	Control  *ui.Event  `json:"control,omitempty"`
	Controls []ui.Event `json:"controls,omitempty"`
	Entry    *EntryView `json:"entry,omitempty"`
}

// Hub fans messages out to connected websocket clients.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex
	log     logging.LeveledLogger

	register   chan *client
	unregister chan *client
	broadcast  chan Message

	done     chan struct{}
	stopOnce sync.Once
}

type client struct {
	send chan []byte
}

// NewHub creates a hub. Call Run to start it.
func NewHub(lf logging.LoggerFactory) *Hub {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		log:        lf.NewLogger("webui"),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("client connected, %d total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("client disconnected, %d total", total)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Errorf("marshal %s: %v", msg.Type, err)
				continue
			}
			h.mu.Lock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					slow = append(slow, c)
				}
			}
			for _, c := range slow {
				delete(h.clients, c)
				close(c.send)
				h.log.Warn("client evicted (too slow)")
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. Messages are dropped when the
// queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warnf("broadcast queue full, dropping %s", msg.Type)
	}
}

// Observer returns a ui.Observer that broadcasts every control event.
func (h *Hub) Observer() ui.Observer {
	return func(ev ui.Event) {
		h.Broadcast(Message{Type: TypeControl, Control: &ev})
	}
}

// CacheObserver returns a state.ChangeFunc that broadcasts attribute updates.
func (h *Hub) CacheObserver() state.ChangeFunc {
	return func(e state.Entry) {
		v := entryView(e)
		h.Broadcast(Message{Type: TypeAttribute, Entry: &v})
	}
}
