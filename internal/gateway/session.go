package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/elmerdema/chessgame/internal/match"
)

// Conn is the transport behind a session. Send must not block on a slow
// peer.
type Conn interface {
	Send(data []byte, binary bool) error
	Close()
}

// Session is one live transport connection, optionally bound to an account.
type Session struct {
	ID   uuid.UUID
	conn Conn

	mu      sync.Mutex
	account int64
}

func NewSession(conn Conn) *Session {
	return &Session{ID: uuid.New(), conn: conn, account: match.Unassigned}
}

// Account returns the bound account id, if any.
func (s *Session) Account() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.account != match.Unassigned
}

// bind swaps the bound account and returns the previous one.
func (s *Session) bind(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.account
	s.account = id
	return prev
}

func (s *Session) send(r Reply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return s.conn.Send(data, false)
}

// Sessions is the registry of connected sessions.
type Sessions struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[uuid.UUID]*Session)}
}

func (r *Sessions) add(s *Session) {
	r.mu.Lock()
	r.byID[s.ID] = s
	r.mu.Unlock()
}

// remove reports whether s was registered.
func (r *Sessions) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID[s.ID] != s {
		return false
	}
	delete(r.byID, s.ID)
	return true
}

func (r *Sessions) registered(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[s.ID] == s
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Sessions) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
