package monitor

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"grimm.is/lswitch/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Enforce same-origin for the WebSocket upgrade: mitigates cross-site
	// WebSocket hijacking from a browser tab on another origin.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}
		host := r.Host
		if strings.HasPrefix(origin, "http://") {
			return origin[len("http://"):] == host
		}
		if strings.HasPrefix(origin, "https://") {
			return origin[len("https://"):] == host
		}
		return false
	},
}

// Status is the point-in-time snapshot served from GET /status, enough
// for a freshly-attached TUI or dashboard to paint its first frame before
// the first event arrives over /stream.
type Status struct {
	DatapathID   string `json:"datapath_id"`
	Mode         string `json:"mode"`
	LinkName     string `json:"link_name"`
	MacTableSize int    `json:"mac_table_size"`
	Published    uint64 `json:"events_published"`
	Dropped      uint64 `json:"events_dropped"`
}

// StatusProvider is implemented by whatever owns the live Switch; the
// monitor package never imports internal/lswitch itself, so a session
// can be wired into /status without internal/monitor knowing its type.
type StatusProvider interface {
	Status() Status
}

// Server exposes a Hub's event stream and a point-in-time status snapshot
// over HTTP. Each websocket connection is tagged with a google/uuid
// session id for logging, the way the teacher tags its RPC/WS sessions
// (internal/api/import.go, internal/device/manager.go).
type Server struct {
	hub    *Hub
	status StatusProvider
	log    *logging.Logger
}

// NewServer wraps hub (and an optional StatusProvider) for HTTP serving.
func NewServer(hub *Hub, status StatusProvider, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{hub: hub, status: status, log: log.WithComponent("monitor")}
}

// Handler returns the mux routing GET /status and GET /stream to this
// server's handlers, ready to hand to http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/stream", s.ServeHTTP)
	return mux
}

// handleStatus serves GET /status: a single JSON snapshot, no upgrade.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}
	snapshot := s.status.Status()
	snapshot.Published, snapshot.Dropped = s.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// ServeHTTP upgrades the connection and streams every hub event to the
// client as JSON text frames until the connection closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnRL("ws-upgrade-error", "failed to upgrade websocket", "err", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	log := s.log.WithFields(map[string]any{"ws_session": sessionID})

	ch := s.hub.Subscribe(256)
	defer s.hub.Unsubscribe(ch)

	go s.drainReads(conn)

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	log.Debug("websocket client attached")
	defer log.Debug("websocket client detached")

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards any client-sent frames so the read side of the
// connection doesn't back up; this endpoint is read-only from the
// client's perspective, but a silent client still needs pongs consumed.
func (s *Server) drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
