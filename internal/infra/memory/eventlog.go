package memory

import (
	"context"
	"sync"

	"trivia-session-service/internal/domain"
)

// EventLog is an append-only in-memory event trail.
type EventLog struct {
	mu     sync.Mutex
	events []domain.GameEvent
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) AppendEvent(_ context.Context, event domain.GameEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (l *EventLog) Events() []domain.GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.GameEvent, len(l.events))
	copy(out, l.events)
	return out
}

// ForLobby filters events for one lobby.
func (l *EventLog) ForLobby(lobbyID string) []domain.GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.GameEvent
	for _, e := range l.events {
		if e.LobbyID == lobbyID {
			out = append(out, e)
		}
	}
	return out
}
