package memory

import (
	"context"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

func TestSessionStoreIndexes(t *testing.T) {
	store := NewSessionStore()
	history := NewHistoryStore()
	events := NewEventLog()
	bank := NewQuizBank(MustStaticQuizLoader(map[string]domain.QuizDefinition{
		"quiz-1": sampleQuiz(),
	}), time.Minute)

	service := app.NewGameService(store, bank, NewCodeAllocator(), history, events)
	lobbyID, code, err := service.CreateLobby(context.Background(), "quiz-1", "host", "Hana")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	if _, ok := store.Get(lobbyID); !ok {
		t.Fatalf("expected session by lobby id")
	}
	if _, ok := store.GetByCode(code); !ok {
		t.Fatalf("expected session by join code")
	}
	if _, ok := store.Get("lob_nope"); ok {
		t.Fatalf("unexpected session for unknown id")
	}
}
