package dispatch

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/medride/internal/models"
)

// WSSession represents a connected rider session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(b *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(b)
}

// WSRegistry holds rider sessions so bid updates can be pushed without
// waiting for the next poll. Riders without a session simply poll.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[int64]*WSSession)} }

func (r *WSRegistry) Add(riderID int64, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[riderID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(riderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, riderID)
}

func (r *WSRegistry) BidUpdate(riderID int64, b *models.Bid) error {
	r.mu.RLock()
	s, ok := r.sessions[riderID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(b); err != nil {
		log.Printf("ws send error: %v", err)
		return err
	}
	return nil
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
