package memory

import (
	"sync"

	"trivia-session-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// indexed by lobby ID and by join code.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	byCode   map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		byCode:   make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.LobbyID()] = session
	s.byCode[session.Code()] = session
}

func (s *SessionStore) Get(lobbyID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[lobbyID]
	return session, ok
}

func (s *SessionStore) GetByCode(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byCode[code]
	return session, ok
}
