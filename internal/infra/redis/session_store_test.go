package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func TestSessionStoreMarksLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	bank := memory.NewQuizBank(memory.MustStaticQuizLoader(map[string]domain.QuizDefinition{
		"quiz-1": sampleQuiz(),
	}), time.Minute)
	service := app.NewGameService(store, bank, memory.NewCodeAllocator(), memory.NewHistoryStore(), memory.NewEventLog())

	ctx := context.Background()
	lobbyID, code, err := service.CreateLobby(ctx, "quiz-1", "host", "Hana")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	if _, ok := store.Get(lobbyID); !ok {
		t.Fatalf("expected session by lobby id")
	}
	if _, ok := store.GetByCode(code); !ok {
		t.Fatalf("expected session by join code")
	}
	if !mr.Exists("lobby:" + lobbyID + ":live") {
		t.Fatalf("expected liveness key in redis")
	}
	live, err := store.IsLive(ctx, lobbyID)
	if err != nil || !live {
		t.Fatalf("expected lobby live: live=%v err=%v", live, err)
	}

	mr.FastForward(2 * time.Minute)
	if live, _ := store.IsLive(ctx, lobbyID); live {
		t.Fatalf("expected liveness marker to expire")
	}
}
