package handlers

import (
	"sync"
	"time"

	"sousvide_simulator/internal/logger"

	"github.com/gorilla/websocket"
)

// sendBuffer bounds the per-session outbound queue. A session that cannot
// keep up gets dropped rather than blocking the broadcaster.
const sendBuffer = 32

// wsSession is one connected protocol client. All writes to the connection
// go through the send channel so the single writer goroutine preserves
// ordering: a command ack is always queued before the broadcast that
// reflects its effect.
type wsSession struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conn *websocket.Conn) *wsSession {
	return &wsSession{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue queues a frame for the writer goroutine. Returns false if the
// session is closed or its queue is full.
func (s *wsSession) enqueue(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// close marks the session closed and severs the connection. Safe to call
// more than once.
func (s *wsSession) close(closeCode int, reason string) {
	s.closeOnce.Do(func() {
		close(s.closed)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(closeCode, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = s.conn.Close()
	})
}

// Hub tracks live protocol sessions. Disconnecting one session never
// affects device state or the others.
type Hub struct {
	mu       sync.Mutex
	sessions map[*wsSession]struct{}
	log      *logger.Logger
}

// NewHub returns an empty session registry.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[*wsSession]struct{}),
		log:      log,
	}
}

func (h *Hub) register(s *wsSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) unregister(s *wsSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// Count reports the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Broadcast queues one encoded frame on every live session.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	targets := make([]*wsSession, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if !s.enqueue(frame) && h.log != nil {
			h.log.Infow("broadcast dropped for slow session")
		}
	}
}

// DisconnectAll severs every live session, e.g. when the simulated device
// goes offline. Implements service.SessionDropper.
func (h *Hub) DisconnectAll(reason string) {
	h.mu.Lock()
	targets := make([]*wsSession, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.sessions = make(map[*wsSession]struct{})
	h.mu.Unlock()

	for _, s := range targets {
		s.close(websocket.CloseGoingAway, reason)
	}
	if h.log != nil {
		h.log.Infow("all sessions disconnected", "reason", reason, "count", len(targets))
	}
}
