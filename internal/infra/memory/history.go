package memory

import (
	"context"
	"fmt"
	"sync"

	"trivia-session-service/internal/domain"
)

// HistoryStore keeps participation records in memory. One record per lobby:
// a second write for the same lobby is rejected.
type HistoryStore struct {
	mu      sync.Mutex
	byLobby map[string]domain.ParticipationRecord
	seq     int
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{byLobby: make(map[string]domain.ParticipationRecord)}
}

func (h *HistoryStore) RecordParticipation(_ context.Context, rec domain.ParticipationRecord) (domain.ParticipationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.byLobby[rec.LobbyID]; exists {
		return domain.ParticipationRecord{}, fmt.Errorf("participation already recorded for lobby %s", rec.LobbyID)
	}
	h.seq++
	rec.ID = fmt.Sprintf("part_%d", h.seq)
	h.byLobby[rec.LobbyID] = rec
	return rec, nil
}

// ByLobby returns the record for a lobby, if any.
func (h *HistoryStore) ByLobby(lobbyID string) (domain.ParticipationRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.byLobby[lobbyID]
	return rec, ok
}

// ForUser lists a user's records, newest last.
func (h *HistoryStore) ForUser(userID string) []domain.ParticipationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.ParticipationRecord
	for _, rec := range h.byLobby {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}
