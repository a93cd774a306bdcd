package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// Handler exposes the public session operations as JSON over HTTP.
// Authentication is an upstream concern: the caller identity arrives in the
// X-User-ID header.
type Handler struct {
	service *app.GameService
}

func NewHandler(service *app.GameService) *Handler {
	return &Handler{service: service}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes/{quizID}/sessions", h.startSession)
	mux.HandleFunc("POST /lobbies", h.createLobby)
	mux.HandleFunc("POST /lobbies/join", h.joinLobby)
	mux.HandleFunc("POST /sessions/{lobbyID}/start", h.startLobby)
	mux.HandleFunc("POST /sessions/{lobbyID}/pause", h.pauseLobby)
	mux.HandleFunc("POST /sessions/{lobbyID}/resume", h.resumeLobby)
	mux.HandleFunc("GET /sessions/{lobbyID}", h.sessionState)
	mux.HandleFunc("POST /sessions/{lobbyID}/answer", h.submitAnswer)
	mux.HandleFunc("GET /sessions/{lobbyID}/leaderboard", h.leaderboard)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, nickname, ok := caller(w, r)
	if !ok {
		return
	}
	lobbyID, err := h.service.StartSolo(r.Context(), r.PathValue("quizID"), userID, nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"lobby_id": lobbyID})
}

func (h *Handler) createLobby(w http.ResponseWriter, r *http.Request) {
	userID, nickname, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		QuizID string `json:"quiz_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.QuizID == "" {
		http.Error(w, "body must include quiz_id", http.StatusBadRequest)
		return
	}
	lobbyID, code, err := h.service.CreateLobby(r.Context(), body.QuizID, userID, nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"lobby_id": lobbyID, "code": code})
}

func (h *Handler) joinLobby(w http.ResponseWriter, r *http.Request) {
	// Joining allows guests: an empty X-User-ID is fine, the nickname is
	// the identity inside the lobby.
	userID := r.Header.Get("X-User-ID")
	var body struct {
		Code     string `json:"code"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" || body.Nickname == "" {
		http.Error(w, "body must include code and nickname", http.StatusBadRequest)
		return
	}
	lobbyID, err := h.service.JoinLobby(r.Context(), body.Code, userID, body.Nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lobby_id": lobbyID})
}

func (h *Handler) startLobby(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.StartLobby)
}

func (h *Handler) pauseLobby(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.PauseLobby)
}

func (h *Handler) resumeLobby(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.ResumeLobby)
}

func (h *Handler) hostAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, lobbyID, userID string) error) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), r.PathValue("lobbyID"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	state, err := h.service.GetState(r.Context(), r.PathValue("lobbyID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "body must be a JSON answer payload", http.StatusBadRequest)
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("lobbyID"), userID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("lobbyID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func caller(w http.ResponseWriter, r *http.Request) (userID, nickname string, ok bool) {
	userID = r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
		return "", "", false
	}
	nickname = r.Header.Get("X-Nickname")
	if nickname == "" {
		nickname = userID
	}
	return userID, nickname, true
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateAnswer):
		status = http.StatusConflict
	default:
		log.Printf("request failed: %v", err)
		writeJSON(w, status, errorBody{Kind: "internal", Message: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Kind: string(domain.KindOf(err)), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
