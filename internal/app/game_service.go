package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(lobbyID string) (*Session, bool)
	GetByCode(code string) (*Session, bool)
}

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// HistoryRecorder persists one participation record per completed lobby.
type HistoryRecorder interface {
	RecordParticipation(ctx context.Context, rec domain.ParticipationRecord) (domain.ParticipationRecord, error)
}

// EventTrail is the append-only lifecycle log. Appends are fire-and-forget:
// a failed append never fails the transition that triggered it.
type EventTrail interface {
	AppendEvent(ctx context.Context, event domain.GameEvent) error
}

// GameService contains the live session use cases.
type GameService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	codes    CodeAllocator
	history  HistoryRecorder
	events   EventTrail
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGameService(sessions SessionRepository, quizzes QuizRepository, codes CodeAllocator, history HistoryRecorder, events EventTrail) *GameService {
	return NewGameServiceWithClock(sessions, quizzes, codes, history, events, time.Now)
}

// NewGameServiceWithClock allows deterministic timestamps in tests.
func NewGameServiceWithClock(sessions SessionRepository, quizzes QuizRepository, codes CodeAllocator, history HistoryRecorder, events EventTrail, now func() time.Time) *GameService {
	return &GameService{
		sessions: sessions,
		quizzes:  quizzes,
		codes:    codes,
		history:  history,
		events:   events,
		now:      now,
		rnd:      rand.New(rand.NewSource(now().UnixNano())),
	}
}

// StartSolo creates a single-player lobby that is already running, with the
// caller as its host participant, and returns the lobby ID.
func (g *GameService) StartSolo(ctx context.Context, quizID, userID, nickname string) (string, error) {
	quiz, err := g.publishedQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}

	session, err := g.createSession(ctx, quiz, userID, nickname, domain.LobbyRunning)
	if err != nil {
		return "", err
	}
	return session.LobbyID(), nil
}

// CreateLobby creates a pending multi-participant lobby hosted by the caller.
// Other players join by code; the host starts it explicitly.
func (g *GameService) CreateLobby(ctx context.Context, quizID, hostID, nickname string) (lobbyID, code string, err error) {
	quiz, err := g.publishedQuiz(ctx, quizID)
	if err != nil {
		return "", "", err
	}

	session, err := g.createSession(ctx, quiz, hostID, nickname, domain.LobbyPending)
	if err != nil {
		return "", "", err
	}
	return session.LobbyID(), session.Code(), nil
}

func (g *GameService) createSession(ctx context.Context, quiz domain.QuizDefinition, hostID, nickname string, status domain.LobbyStatus) (*Session, error) {
	code, err := allocateCode(ctx, g.lockedRand(), g.codes)
	if err != nil {
		return nil, err
	}

	now := g.now()
	lobby := domain.Lobby{
		ID:        g.newID("lob"),
		Code:      code,
		QuizID:    quiz.ID,
		HostID:    hostID,
		Status:    status,
		CreatedAt: now,
	}
	if status == domain.LobbyRunning {
		lobby.StartedAt = &now
	}

	session := newSession(lobby, g.now)
	host, err := session.join(hostID, nickname, true)
	if err != nil {
		_ = g.codes.Release(ctx, code)
		return nil, err
	}
	g.sessions.Add(session)

	g.emit(ctx, lobby.ID, quiz.ID, transition{
		typ:     domain.EventLobbyCreated,
		payload: map[string]any{"status": string(status)},
	})
	g.emit(ctx, lobby.ID, quiz.ID, transition{
		typ:           domain.EventParticipantJoined,
		participantID: host.ID,
		payload:       map[string]any{"nickname": host.Nickname, "host": true},
	})
	return session, nil
}

// JoinLobby adds a participant to a pending lobby found by join code. A
// userID may be empty for guest nicknames.
func (g *GameService) JoinLobby(ctx context.Context, code, userID, nickname string) (string, error) {
	session, ok := g.sessions.GetByCode(code)
	if !ok {
		return "", domain.NotFound("no lobby with that code")
	}

	p, err := session.join(userID, nickname, false)
	if err != nil {
		return "", err
	}
	g.emit(ctx, session.LobbyID(), session.QuizID(), transition{
		typ:           domain.EventParticipantJoined,
		participantID: p.ID,
		payload:       map[string]any{"nickname": p.Nickname},
	})
	return session.LobbyID(), nil
}

// StartLobby moves a pending lobby to running. Host only.
func (g *GameService) StartLobby(ctx context.Context, lobbyID, userID string) error {
	return g.hostTransition(ctx, lobbyID, func(s *Session) ([]transition, error) { return s.start(userID) })
}

// PauseLobby freezes the active question's clock. Host only.
func (g *GameService) PauseLobby(ctx context.Context, lobbyID, userID string) error {
	return g.hostTransition(ctx, lobbyID, func(s *Session) ([]transition, error) { return s.pause(userID) })
}

// ResumeLobby resumes a paused lobby; paused time never counts as elapsed.
func (g *GameService) ResumeLobby(ctx context.Context, lobbyID, userID string) error {
	return g.hostTransition(ctx, lobbyID, func(s *Session) ([]transition, error) { return s.resume(userID) })
}

func (g *GameService) hostTransition(ctx context.Context, lobbyID string, op func(*Session) ([]transition, error)) error {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return domain.NotFound("lobby not found")
	}
	transitions, err := op(session)
	if err != nil {
		return err
	}
	g.emit(ctx, lobbyID, session.QuizID(), transitions...)
	return nil
}

// GetState returns the caller's view of the lobby, lazily activating the
// first question of a running lobby that has none yet.
func (g *GameService) GetState(ctx context.Context, lobbyID, userID string) (SessionState, error) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return SessionState{}, domain.NotFound("lobby not found")
	}
	quiz, err := g.quizzes.GetQuiz(ctx, session.QuizID())
	if err != nil {
		return SessionState{}, err
	}

	state, transitions, err := session.state(quiz, userID)
	if err != nil {
		return SessionState{}, err
	}
	g.emit(ctx, lobbyID, quiz.ID, transitions...)
	return state, nil
}

// SubmitAnswer records one answer for the caller against the active
// question, then advances the lobby to the next question or ends it.
func (g *GameService) SubmitAnswer(ctx context.Context, lobbyID, userID string, payload json.RawMessage) (SubmitResult, error) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return SubmitResult{}, domain.NotFound("lobby not found")
	}
	quiz, err := g.quizzes.GetQuiz(ctx, session.QuizID())
	if err != nil {
		return SubmitResult{}, err
	}

	result, transitions, err := session.submit(quiz, userID, payload, func(rec domain.ParticipationRecord) (domain.ParticipationRecord, error) {
		return g.history.RecordParticipation(ctx, rec)
	})
	if err != nil {
		return SubmitResult{}, err
	}
	g.emit(ctx, lobbyID, quiz.ID, transitions...)
	return result, nil
}

// Leaderboard returns the score-ordered scoreboard. Callers must be in the lobby.
func (g *GameService) Leaderboard(_ context.Context, lobbyID, userID string) (domain.Leaderboard, error) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return domain.Leaderboard{}, domain.NotFound("lobby not found")
	}
	if !session.isParticipant(userID) {
		return domain.Leaderboard{}, domain.Permission("you are not in this lobby")
	}
	return session.leaderboard(), nil
}

// Subscribe returns a channel receiving leaderboard updates for a lobby.
// The caller must invoke the returned cancel function to avoid leaks.
func (g *GameService) Subscribe(_ context.Context, lobbyID string) (<-chan domain.Leaderboard, func(), error) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return nil, nil, domain.NotFound("lobby not found")
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave marks the participant disconnected. It never removes them or their
// answers; disconnection is not removal.
func (g *GameService) Leave(ctx context.Context, lobbyID, userID string) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return
	}
	if p, ok := session.leave(userID); ok {
		g.emit(ctx, lobbyID, session.QuizID(), transition{
			typ:           domain.EventParticipantLeft,
			participantID: p.ID,
			payload:       map[string]any{"nickname": p.Nickname},
		})
	}

	// A shared lobby waiting on the departed participant's answer should
	// move on rather than stall.
	quiz, err := g.quizzes.GetQuiz(ctx, session.QuizID())
	if err != nil {
		log.Printf("skip post-leave advance for %s: %v", lobbyID, err)
		return
	}
	transitions, err := session.advanceIfStalled(quiz, func(rec domain.ParticipationRecord) (domain.ParticipationRecord, error) {
		return g.history.RecordParticipation(ctx, rec)
	})
	if err != nil {
		log.Printf("post-leave advance for %s: %v", lobbyID, err)
		return
	}
	g.emit(ctx, lobbyID, quiz.ID, transitions...)
}

func (g *GameService) publishedQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	quiz, err := g.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	if !quiz.Published {
		return domain.QuizDefinition{}, domain.NotFound("published quiz not found")
	}
	return quiz, nil
}

// emit appends lifecycle events synchronously; failures are logged and
// discarded so they never roll back the triggering transition.
func (g *GameService) emit(ctx context.Context, lobbyID, quizID string, transitions ...transition) {
	for _, t := range transitions {
		event := domain.GameEvent{
			Type:          t.typ,
			LobbyID:       lobbyID,
			QuizID:        quizID,
			ParticipantID: t.participantID,
			Payload:       t.payload,
			CreatedAt:     g.now(),
		}
		if err := g.events.AppendEvent(ctx, event); err != nil {
			log.Printf("event trail append failed (%s on %s): %v", t.typ, lobbyID, err)
		}
	}
}

// lockedRand hands out a rand source safely; rand.Rand is not goroutine safe.
func (g *GameService) lockedRand() *rand.Rand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return rand.New(rand.NewSource(g.rnd.Int63()))
}

func (g *GameService) newID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%s_%012x", prefix, g.rnd.Int63()&0xffffffffffff)
}
