package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.GameService) {
	t.Helper()
	bank := memory.NewQuizBank(memory.MustStaticQuizLoader(fixtureQuizzes()), time.Minute)
	service := app.NewGameService(memory.NewSessionStore(), bank, memory.NewCodeAllocator(), memory.NewHistoryStore(), memory.NewEventLog())

	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func doJSON(t *testing.T, method, url, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSoloSessionOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/quizzes/quiz-1/sessions", "u1", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: status %d", resp.StatusCode)
	}
	lobbyID, _ := body["lobby_id"].(string)
	if lobbyID == "" {
		t.Fatalf("expected lobby_id, got %v", body)
	}

	resp, state := doJSON(t, http.MethodGet, server.URL+"/sessions/"+lobbyID, "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get state: status %d", resp.StatusCode)
	}
	if state["status"] != "running" {
		t.Fatalf("expected running, got %v", state["status"])
	}
	question, _ := state["question"].(map[string]any)
	if question == nil || question["order"].(float64) != 1 {
		t.Fatalf("expected question order 1, got %v", state["question"])
	}
	if _, leaked := question["answerKey"]; leaked {
		t.Fatalf("answer key must never reach players")
	}

	resp, result := doJSON(t, http.MethodPost, server.URL+"/sessions/"+lobbyID+"/answer", "u1", map[string]any{"index": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d body %v", resp.StatusCode, result)
	}
	if result["status"] != "finished" {
		t.Fatalf("expected finished, got %v", result)
	}
	if result["score"].(float64) != 100 {
		t.Fatalf("expected score 100, got %v", result["score"])
	}
	if result["participation_id"] == "" {
		t.Fatalf("expected participation id")
	}

	// The lobby is over; further submissions are invalid.
	resp, errBody := doJSON(t, http.MethodPost, server.URL+"/sessions/"+lobbyID+"/answer", "u1", map[string]any{"index": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 after end, got %d (%v)", resp.StatusCode, errBody)
	}
	if errBody["kind"] != "validation" {
		t.Fatalf("expected validation kind, got %v", errBody)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server, _ := newTestServer(t)

	// Unknown quiz -> 404.
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/quizzes/quiz-missing/sessions", "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// Missing identity -> 401.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/quizzes/quiz-1/sessions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Non-participant -> 403.
	_, body := doJSON(t, http.MethodPost, server.URL+"/quizzes/quiz-1/sessions", "u1", nil)
	lobbyID := body["lobby_id"].(string)
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/sessions/"+lobbyID, "stranger", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDuplicateAnswerConflict(t *testing.T) {
	server, _ := newTestServer(t)

	_, created := doJSON(t, http.MethodPost, server.URL+"/lobbies", "host", map[string]any{"quiz_id": "quiz-1"})
	lobbyID := created["lobby_id"].(string)
	code := created["code"].(string)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/lobbies/join", "guest", map[string]any{"code": code, "nickname": "Gus"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodPost, server.URL+"/sessions/"+lobbyID+"/start", "host", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodGet, server.URL+"/sessions/"+lobbyID, "host", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("activate: status %d", resp.StatusCode)
	}

	if resp, _ := doJSON(t, http.MethodPost, server.URL+"/sessions/"+lobbyID+"/answer", "host", map[string]any{"index": 1}); resp.StatusCode != http.StatusOK {
		t.Fatalf("first answer: status %d", resp.StatusCode)
	}
	resp, errBody := doJSON(t, http.MethodPost, server.URL+"/sessions/"+lobbyID+"/answer", "host", map[string]any{"index": 1})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d (%v)", resp.StatusCode, errBody)
	}
	if errBody["kind"] != "duplicate_answer" {
		t.Fatalf("expected duplicate_answer kind, got %v", errBody)
	}
}

func fixtureQuizzes() map[string]domain.QuizDefinition {
	idx := 1
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Warm-up",
			Published: true,
			Questions: []domain.QuestionRef{
				{Order: 1, Question: domain.Question{
					ID:      "q1",
					Type:    domain.QuestionMultipleChoice,
					Text:    "What is 2 + 2?",
					Choices: []string{"3", "4", "5"},
					Key:     domain.AnswerKey{CorrectIndex: &idx},
				}},
			},
		},
	}
}
