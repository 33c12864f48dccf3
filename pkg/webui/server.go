package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pion/logging"
	"nhooyr.io/websocket"

	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// EntryView is the JSON form of a cache entry.
type EntryView struct {
	Key       string    `json:"key"`
	Node      string    `json:"node"`
	Endpoint  uint16    `json:"endpoint"`
	Cluster   uint32    `json:"cluster"`
	Attribute uint32    `json:"attribute"`
	Value     int64     `json:"value"`
	Source    string    `json:"source"`
	Updated   time.Time `json:"updated"`
}

func entryView(e state.Entry) EntryView {
	return EntryView{
		Key:       e.Key.String(),
		Node:      e.Key.Node.String(),
		Endpoint:  uint16(e.Key.Endpoint),
		Cluster:   uint32(e.Key.Cluster),
		Attribute: uint32(e.Key.Attribute),
		Value:     e.Value,
		Source:    e.Source.String(),
		Updated:   e.Updated,
	}
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Cache *state.Cache
	// Controls returns the current control snapshots.
	Controls       func() []ui.Event
	AllowedOrigins []string
	LoggerFactory  logging.LoggerFactory
}

// Server serves the cache and control state.
//
//	GET /api/state     cache entries
//	GET /api/controls  control snapshots
//	GET /ws            control and attribute updates
type Server struct {
	cache    *state.Cache
	controls func() []ui.Event
	origins  []string
	hub      *Hub
	mux      *http.ServeMux
	log      logging.LeveledLogger
	unwatch  func()
}

// NewServer creates a Server and starts its hub.
func NewServer(cfg ServerConfig) *Server {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if cfg.Controls == nil {
		cfg.Controls = func() []ui.Event { return nil }
	}
	s := &Server{
		cache:    cfg.Cache,
		controls: cfg.Controls,
		origins:  cfg.AllowedOrigins,
		hub:      NewHub(cfg.LoggerFactory),
		mux:      http.NewServeMux(),
		log:      cfg.LoggerFactory.NewLogger("webui"),
	}
	if s.cache != nil {
		s.unwatch = s.cache.OnChange(s.hub.CacheObserver())
	}
	s.routes()
	go s.hub.Run()
	return s
}

// Hub returns the broadcast hub. Its Observer feeds control events to clients.
func (s *Server) Hub() *Hub { return s.hub }

// Stop disconnects all clients.
func (s *Server) Stop() {
	if s.unwatch != nil {
		s.unwatch()
	}
	s.hub.Stop()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/controls", s.handleControls)
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	out := []EntryView{}
	if s.cache != nil {
		for _, e := range s.cache.Snapshot() {
			out = append(out, entryView(e))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	controls := s.controls()
	if controls == nil {
		controls = []ui.Event{}
	}
	writeJSON(w, http.StatusOK, controls)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.origins) > 0 {
		opts.OriginPatterns = s.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Errorf("ws accept: %v", err)
		return
	}
	conn.SetReadLimit(4096)

	c := &client{send: make(chan []byte, 64)}

	// The snapshot goes first so clients start from a complete picture.
	if data, err := json.Marshal(Message{Type: TypeControls, Controls: s.controls()}); err == nil {
		c.send <- data
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.writePump(conn, c)
	s.readPump(conn, c)
}

func (s *Server) writePump(conn *websocket.Conn, c *client) {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		select {
		case s.hub.unregister <- c:
		case <-s.hub.done:
			conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.hub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
