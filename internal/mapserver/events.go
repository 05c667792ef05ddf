package mapserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/selection"
)

const (
	pingInterval = 20 * time.Second
	writeTimeout = 5 * time.Second
	clientBuffer = 16
)

// eventMessage is one frame on /session/events.
type eventMessage struct {
	Type    string          `json:"type"`
	Session sessionResponse `json:"session"`
	Error   string          `json:"error,omitempty"`
}

// hub fans session events out to websocket clients. Slow clients miss
// frames rather than blocking the controller.
type hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[chan []byte]struct{})}
}

func (h *hub) add() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) remove(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *hub) publish(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			zap.L().Debug("mapserver: dropping event for slow client")
		}
	}
}

// onEvent runs as a selection listener; it only reads the event's state.
func (s *Server) onEvent(ev selection.Event) {
	msg := eventMessage{
		Type:    string(ev.Type),
		Session: s.stateResponse(ev.State),
	}
	if ev.Err != nil {
		msg.Error = "regions could not be loaded"
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("mapserver: marshal event", zap.Error(err))
		return
	}
	s.hub.publish(data)
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
}

// sessionEvents streams session transitions. The first frame is a
// "snapshot" of the current state.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("mapserver: websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close() //nolint:errcheck

	ch := s.hub.add()
	defer s.hub.remove(ch)

	// Reads only detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot, err := json.Marshal(eventMessage{Type: "snapshot", Session: s.sessionState()})
	if err != nil {
		return
	}
	if err := write(conn, snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if err := write(conn, msg); err != nil {
				zap.L().Debug("mapserver: websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
