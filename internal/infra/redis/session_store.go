package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-session-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions themselves stay in process (the broadcast machinery needs shared
// memory); Redis carries liveness markers per lobby so other instances can
// see which lobbies exist and route accordingly.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
	byCode   map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		byCode:   make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	lobbyID := session.LobbyID()
	code := session.Code()

	s.mu.Lock()
	s.sessions[lobbyID] = session
	s.byCode[code] = session
	s.mu.Unlock()

	// Best-effort liveness marker.
	_ = s.client.Set(context.Background(), s.key(lobbyID), code, s.ttl).Err()
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

// IsLive reports whether any instance has marked the lobby live in Redis.
func (s *SessionStore) IsLive(ctx context.Context, lobbyID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(lobbyID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) key(lobbyID string) string {
	return "lobby:" + lobbyID + ":live"
}
