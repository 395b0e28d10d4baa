package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/trip-share/internal/models"
)

// WSSession is one connected passenger watcher.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(pos models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(pos)
}

// WSRegistry holds passenger sessions per trip so position writes can be
// pushed instead of waiting for the next poll.
type WSRegistry struct {
	mu       sync.RWMutex
	watchers map[string][]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{watchers: make(map[string][]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(tripID string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[tripID] = append(r.watchers[tripID], s)
	return s
}

func (r *WSRegistry) Remove(tripID string, session *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.watchers[tripID][:0]
	for _, s := range r.watchers[tripID] {
		if s != session {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(r.watchers, tripID)
		return
	}
	r.watchers[tripID] = kept
}

// Broadcast pushes a position to every watcher of the trip. Send errors are
// logged and the session is left for the read loop to reap.
func (r *WSRegistry) Broadcast(tripID string, pos models.Position) {
	r.mu.RLock()
	sessions := append([]*WSSession(nil), r.watchers[tripID]...)
	r.mu.RUnlock()
	for _, s := range sessions {
		if err := s.Send(pos); err != nil {
			r.logger.Warn("ws send failed", "trip_id", tripID, "error", err)
		}
	}
}
