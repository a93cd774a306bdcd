package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Session owns one lobby's runtime state: the lobby row, its participants,
// and the answer ledger. Every operation runs under a single per-session
// mutex, which is the atomicity boundary the engine guarantees: no caller
// ever observes a partial effect of a concurrent operation on the same
// lobby. Distinct lobbies share nothing and proceed fully in parallel.
type Session struct {
	mu  sync.Mutex
	now func() time.Time

	lobby        domain.Lobby
	participants map[string]*domain.Participant // by participant ID
	byUser       map[string]string              // user ID -> participant ID
	byNickname   map[string]string              // folded nickname -> participant ID
	answers      map[answerSlot]*domain.Answer

	// Freeze-and-resume pause accounting for the active question.
	pausedAt    *time.Time
	pausedTotal time.Duration

	subscribers map[chan domain.Leaderboard]struct{}
	seq         int
}

// answerSlot is the ledger key: at most one answer per participant per
// question order within a lobby.
type answerSlot struct {
	participantID string
	order         int
}

// transition is an explicit lifecycle fact handed back to the service for
// event-trail emission after the lock is released.
type transition struct {
	typ           domain.EventType
	participantID string
	payload       map[string]any
}

func statusTransition(typ domain.EventType, from, to domain.LobbyStatus) transition {
	return transition{typ: typ, payload: map[string]any{"from": string(from), "to": string(to)}}
}

func newSession(lobby domain.Lobby, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		now:          now,
		lobby:        lobby,
		participants: make(map[string]*domain.Participant),
		byUser:       make(map[string]string),
		byNickname:   make(map[string]string),
		answers:      make(map[answerSlot]*domain.Answer),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

// LobbyID returns the session's lobby identity.
func (s *Session) LobbyID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.ID
}

// Code returns the lobby join code.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.Code
}

// QuizID returns the quiz the lobby plays.
func (s *Session) QuizID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.QuizID
}

// Lobby returns a copy of the lobby row.
func (s *Session) Lobby() domain.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby
}

// Answers returns a copy of the ledger, ordered by submission time.
func (s *Session) Answers() []domain.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Answer, 0, len(s.answers))
	for _, a := range s.answers {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

func (s *Session) join(userID, nickname string, isHost bool) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lobby.Status == domain.LobbyEnded {
		return domain.Participant{}, domain.Validation("lobby has already ended")
	}
	// The host joins at creation time whatever the status; everyone else
	// can only join while the lobby is still pending.
	if !isHost && s.lobby.Status != domain.LobbyPending {
		return domain.Participant{}, domain.Validation("lobby has already started")
	}
	if userID != "" {
		if _, ok := s.byUser[userID]; ok {
			return domain.Participant{}, domain.Validation("user is already in this lobby")
		}
	}
	folded := strings.ToLower(nickname)
	if _, taken := s.byNickname[folded]; taken {
		return domain.Participant{}, domain.Validation("nickname is already taken in this lobby")
	}

	s.seq++
	p := &domain.Participant{
		ID:        fmt.Sprintf("%s-p%d", s.lobby.ID, s.seq),
		LobbyID:   s.lobby.ID,
		UserID:    userID,
		Nickname:  nickname,
		IsHost:    isHost,
		Connected: true,
		JoinedAt:  s.now(),
	}
	s.participants[p.ID] = p
	if userID != "" {
		s.byUser[userID] = p.ID
	}
	s.byNickname[folded] = p.ID
	s.broadcastLocked()
	return *p, nil
}

func (s *Session) leave(userID string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participantLocked(userID)
	if !ok {
		return domain.Participant{}, false
	}
	now := s.now()
	p.Connected = false
	p.LeftAt = &now
	s.broadcastLocked()
	return *p, true
}

// start moves a pending lobby to running. Host only.
func (s *Session) start(userID string) ([]transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(userID); err != nil {
		return nil, err
	}
	if s.lobby.Status != domain.LobbyPending {
		return nil, domain.Validation("lobby is not pending")
	}
	now := s.now()
	s.lobby.Status = domain.LobbyRunning
	s.lobby.StartedAt = &now
	s.broadcastLocked()
	return []transition{statusTransition(domain.EventLobbyStarted, domain.LobbyPending, domain.LobbyRunning)}, nil
}

// pause freezes the active question's clock. Host only.
func (s *Session) pause(userID string) ([]transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(userID); err != nil {
		return nil, err
	}
	if s.lobby.Status != domain.LobbyRunning {
		return nil, domain.Validation("only a running lobby can be paused")
	}
	now := s.now()
	s.lobby.Status = domain.LobbyPaused
	s.pausedAt = &now
	s.broadcastLocked()
	return []transition{statusTransition(domain.EventStatusChanged, domain.LobbyRunning, domain.LobbyPaused)}, nil
}

// resume unfreezes the clock; time spent paused never counts as elapsed.
func (s *Session) resume(userID string) ([]transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(userID); err != nil {
		return nil, err
	}
	if s.lobby.Status != domain.LobbyPaused {
		return nil, domain.Validation("lobby is not paused")
	}
	now := s.now()
	if s.pausedAt != nil {
		s.pausedTotal += now.Sub(*s.pausedAt)
		s.pausedAt = nil
	}
	s.lobby.Status = domain.LobbyRunning
	s.broadcastLocked()
	return []transition{statusTransition(domain.EventStatusChanged, domain.LobbyPaused, domain.LobbyRunning)}, nil
}

// SessionState is the read model returned to participants. TimeLeft is
// derived at read time and never persisted.
type SessionState struct {
	Status    domain.LobbyStatus `json:"status"`
	Detail    string             `json:"detail,omitempty"`
	LobbyID   string             `json:"lobby_id,omitempty"`
	QuizTitle string             `json:"quiz_title,omitempty"`
	Question  *QuestionView      `json:"question,omitempty"`
	Score     int                `json:"score"`
	TimeLeft  float64            `json:"time_left"`
}

// QuestionView is the public presentation of the active question. It never
// carries the answer key.
type QuestionView struct {
	Order        int                 `json:"order"`
	Type         domain.QuestionType `json:"type"`
	Text         string              `json:"text"`
	Choices      []string            `json:"choices,omitempty"`
	Points       int                 `json:"points"`
	TimerSeconds int                 `json:"timer_seconds"`
}

func viewOf(ref domain.QuestionRef) *QuestionView {
	return &QuestionView{
		Order:        ref.Order,
		Type:         ref.Question.Type,
		Text:         ref.Question.Text,
		Choices:      ref.Question.Choices,
		Points:       ref.EffectivePoints(),
		TimerSeconds: ref.EffectiveTimerSeconds(),
	}
}

// state reports the lobby state for one participant, lazily activating the
// first question when a running lobby has none yet. A running quiz with zero
// questions ends immediately: a lobby cannot run with no content.
func (s *Session) state(quiz domain.QuizDefinition, userID string) (SessionState, []transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participantLocked(userID)
	if !ok {
		return SessionState{}, nil, domain.Permission("you are not in this lobby")
	}

	if s.lobby.Status != domain.LobbyRunning {
		return SessionState{
			Status: s.lobby.Status,
			Detail: "lobby is not active",
			Score:  p.Score,
		}, nil, nil
	}

	if s.lobby.CurrentQuestion == nil {
		first, ok := quiz.FirstQuestion()
		if !ok {
			now := s.now()
			s.lobby.Status = domain.LobbyEnded
			s.lobby.EndedAt = &now
			s.broadcastLocked()
			return SessionState{
					Status: domain.LobbyEnded,
					Detail: "quiz has no questions",
					Score:  p.Score,
				}, []transition{statusTransition(domain.EventLobbyEnded, domain.LobbyRunning, domain.LobbyEnded)},
				nil
		}
		s.activateLocked(first)
	}

	return SessionState{
		Status:    s.lobby.Status,
		LobbyID:   s.lobby.ID,
		QuizTitle: quiz.Title,
		Question:  viewOf(*s.lobby.CurrentQuestion),
		Score:     p.Score,
		TimeLeft:  s.timeLeftLocked(),
	}, nil, nil
}

// Submit result statuses. Waiting only occurs in shared lobbies, while
// other connected participants still owe an answer for the current question.
const (
	SubmitNextQuestion = "next_question"
	SubmitFinished     = "finished"
	SubmitWaiting      = "waiting"
)

// SubmitResult is the outcome of one answer submission.
type SubmitResult struct {
	Status          string `json:"status"`
	Score           int    `json:"score"`
	ParticipationID string `json:"participation_id,omitempty"`
}

// submit validates, scores and records one answer, then advances the lobby.
// The entire read-evaluate-write sequence holds the session lock, so the
// ledger's check-and-insert is atomic and concurrent submissions are always
// scored against the question current at their own entry. recordHistory is
// invoked, still under the lock, before any mutation when the submission
// ends the lobby: if it fails, no effect of the submission is applied.
func (s *Session) submit(
	quiz domain.QuizDefinition,
	userID string,
	raw json.RawMessage,
	recordHistory func(domain.ParticipationRecord) (domain.ParticipationRecord, error),
) (SubmitResult, []transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participantLocked(userID)
	if !ok {
		return SubmitResult{}, nil, domain.Permission("you are not in this lobby")
	}
	if s.lobby.Status != domain.LobbyRunning {
		return SubmitResult{}, nil, domain.Validation("lobby is not active")
	}
	if s.lobby.CurrentQuestion == nil || s.lobby.QuestionStartedAt == nil {
		return SubmitResult{}, nil, domain.Validation("no question is currently active")
	}

	// Snapshot the question this submission answers; advancement below
	// never retroactively changes what was evaluated.
	ref := *s.lobby.CurrentQuestion
	duration := *s.lobby.DurationSeconds

	slot := answerSlot{participantID: p.ID, order: ref.Order}
	if _, taken := s.answers[slot]; taken {
		return SubmitResult{}, nil, domain.DuplicateAnswer("you have already answered this question")
	}

	payload, err := domain.ParseAnswerPayload(ref.Question.Type, raw)
	if err != nil {
		return SubmitResult{}, nil, err
	}

	now := s.now()
	elapsed := s.elapsedLocked(now)
	late := elapsed > time.Duration(duration)*time.Second

	correct := false
	points := 0
	evaluation := ""
	if late {
		evaluation = "late"
	} else if Evaluate(ref.Question, payload) {
		correct = true
		points = ref.EffectivePoints()
	}

	responseMS := int(elapsed.Milliseconds())
	if responseMS < 0 {
		responseMS = 0
	}
	if responseMS > domain.MaxResponseTimeMS {
		responseMS = domain.MaxResponseTimeMS
	}

	s.seq++
	answer := &domain.Answer{
		ID:             fmt.Sprintf("%s-a%d", s.lobby.ID, s.seq),
		LobbyID:        s.lobby.ID,
		ParticipantID:  p.ID,
		QuestionOrder:  ref.Order,
		SubmittedAt:    now,
		ResponseTimeMS: responseMS,
		Payload:        append(json.RawMessage(nil), raw...),
		IsCorrect:      correct,
		PointsAwarded:  points,
		Evaluation:     evaluation,
	}

	// In a shared lobby the question stays active until every connected
	// participant has answered it; a retry meanwhile hits the ledger slot
	// above. A solo lobby advances on every submission.
	if !s.allAnsweredLocked(slot, ref.Order) {
		s.answers[slot] = answer
		p.Score += points
		s.broadcastLocked()
		return SubmitResult{Status: SubmitWaiting, Score: p.Score}, nil, nil
	}

	next, hasNext := quiz.NextAfter(ref.Order)
	if hasNext {
		s.answers[slot] = answer
		p.Score += points
		s.activateLocked(next)
		s.broadcastLocked()
		return SubmitResult{Status: SubmitNextQuestion, Score: p.Score}, nil, nil
	}

	// Last question: record history before committing so a sink failure
	// leaves the lobby untouched and the request can be retried.
	record, err := recordHistory(domain.ParticipationRecord{
		UserID:      p.UserID,
		QuizID:      s.lobby.QuizID,
		LobbyID:     s.lobby.ID,
		FinalScore:  p.Score + points,
		CompletedAt: now,
	})
	if err != nil {
		return SubmitResult{}, nil, fmt.Errorf("record participation: %w", err)
	}

	s.answers[slot] = answer
	p.Score += points
	s.lobby.Status = domain.LobbyEnded
	s.lobby.EndedAt = &now
	s.lobby.CurrentQuestion = nil
	s.lobby.QuestionStartedAt = nil
	s.lobby.DurationSeconds = nil
	s.pausedAt = nil
	s.pausedTotal = 0
	s.broadcastLocked()

	return SubmitResult{Status: SubmitFinished, Score: p.Score, ParticipationID: record.ID},
		[]transition{statusTransition(domain.EventLobbyEnded, domain.LobbyRunning, domain.LobbyEnded)},
		nil
}

// advanceIfStalled re-checks advancement after a participant disconnects:
// if everyone still connected has answered the active question, the lobby
// moves on instead of waiting for an answer that will never come. When the
// stalled question was the last one, the lobby ends and the participation
// record is written for the host. With nobody left connected there is no
// one to advance for: the lobby stays running and simply waits, so a
// disconnect alone can never end a session or write history.
func (s *Session) advanceIfStalled(
	quiz domain.QuizDefinition,
	recordHistory func(domain.ParticipationRecord) (domain.ParticipationRecord, error),
) ([]transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lobby.Status != domain.LobbyRunning || s.lobby.CurrentQuestion == nil {
		return nil, nil
	}
	connected := 0
	for _, p := range s.participants {
		if p.Connected {
			connected++
		}
	}
	if connected == 0 {
		return nil, nil
	}
	order := s.lobby.CurrentQuestion.Order
	if !s.allAnsweredLocked(answerSlot{}, order) {
		return nil, nil
	}

	if next, ok := quiz.NextAfter(order); ok {
		s.activateLocked(next)
		s.broadcastLocked()
		return nil, nil
	}

	var host *domain.Participant
	for _, p := range s.participants {
		if p.IsHost {
			host = p
			break
		}
	}
	if host == nil {
		return nil, nil
	}
	now := s.now()
	if _, err := recordHistory(domain.ParticipationRecord{
		UserID:      host.UserID,
		QuizID:      s.lobby.QuizID,
		LobbyID:     s.lobby.ID,
		FinalScore:  host.Score,
		CompletedAt: now,
	}); err != nil {
		return nil, err
	}
	s.lobby.Status = domain.LobbyEnded
	s.lobby.EndedAt = &now
	s.lobby.CurrentQuestion = nil
	s.lobby.QuestionStartedAt = nil
	s.lobby.DurationSeconds = nil
	s.broadcastLocked()
	return []transition{statusTransition(domain.EventLobbyEnded, domain.LobbyRunning, domain.LobbyEnded)}, nil
}

// allAnsweredLocked reports whether every connected participant, plus the
// pending slot being inserted, has an answer for the given order.
func (s *Session) allAnsweredLocked(pending answerSlot, order int) bool {
	for _, p := range s.participants {
		if !p.Connected {
			continue
		}
		slot := answerSlot{participantID: p.ID, order: order}
		if slot == pending {
			continue
		}
		if _, ok := s.answers[slot]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) activateLocked(ref domain.QuestionRef) {
	now := s.now()
	duration := ref.EffectiveTimerSeconds()
	refCopy := ref
	s.lobby.CurrentQuestion = &refCopy
	s.lobby.QuestionStartedAt = &now
	s.lobby.DurationSeconds = &duration
	s.pausedAt = nil
	s.pausedTotal = 0
}

func (s *Session) elapsedLocked(now time.Time) time.Duration {
	end := now
	if s.pausedAt != nil {
		end = *s.pausedAt
	}
	return end.Sub(*s.lobby.QuestionStartedAt) - s.pausedTotal
}

func (s *Session) timeLeftLocked() float64 {
	if s.lobby.QuestionStartedAt == nil || s.lobby.DurationSeconds == nil {
		return 0
	}
	left := float64(*s.lobby.DurationSeconds) - s.elapsedLocked(s.now()).Seconds()
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) participantLocked(userID string) (*domain.Participant, bool) {
	id, ok := s.byUser[userID]
	if !ok {
		return nil, false
	}
	return s.participants[id], true
}

func (s *Session) requireHostLocked(userID string) error {
	p, ok := s.participantLocked(userID)
	if !ok {
		return domain.Permission("you are not in this lobby")
	}
	if !p.IsHost {
		return domain.Permission("only the host can do that")
	}
	return nil
}

func (s *Session) isParticipant(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participantLocked(userID)
	return ok
}

func (s *Session) leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	lb := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stalest update so slow readers never block the lobby.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

func (s *Session) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, p := range s.participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Score:         p.Score,
			Connected:     p.Connected,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := s.participants[entries[i].ParticipantID]
		pj := s.participants[entries[j].ParticipantID]
		if pi != nil && pj != nil && !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return entries[i].Nickname < entries[j].Nickname
	})

	return domain.Leaderboard{
		LobbyID:   s.lobby.ID,
		Status:    s.lobby.Status,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}
