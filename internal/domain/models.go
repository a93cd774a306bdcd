package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// QuestionType discriminates the answer key and payload shapes.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortText      QuestionType = "short_text"
)

// MatchMode controls short-text comparison.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchCasefold MatchMode = "casefold"
	// MatchRegex is recognized in stored content but carries no evaluation
	// rule; ValidateKey rejects it.
	MatchRegex MatchMode = "regex"
)

// AnswerKey is the private scoring key for a question. It is never included
// in any view sent to players.
type AnswerKey struct {
	CorrectIndex *int      `json:"correctIndex,omitempty"` // multiple_choice
	IsTrue       *bool     `json:"isTrue,omitempty"`       // true_false
	Accepted     []string  `json:"accepted,omitempty"`     // short_text
	Mode         MatchMode `json:"mode,omitempty"`         // short_text
}

// Question holds the public content plus the private answer key.
type Question struct {
	ID                  string       `json:"id"`
	Type                QuestionType `json:"type"`
	Text                string       `json:"text"`
	Choices             []string     `json:"choices,omitempty"` // multiple_choice presentation
	Key                 AnswerKey    `json:"answerKey"`
	DefaultPoints       int          `json:"defaultPoints"`       // defaults to 100 if zero
	DefaultTimerSeconds int          `json:"defaultTimerSeconds"` // defaults to 20 if zero
}

// ValidateKey checks the answer key structurally against the question type.
func (q Question) ValidateKey() error {
	switch q.Type {
	case QuestionMultipleChoice:
		if q.Key.CorrectIndex == nil {
			return Validation("multiple_choice question is missing correctIndex")
		}
		if *q.Key.CorrectIndex < 0 || *q.Key.CorrectIndex >= len(q.Choices) {
			return Validation("correctIndex is outside the choice list")
		}
	case QuestionTrueFalse:
		if q.Key.IsTrue == nil {
			return Validation("true_false question is missing isTrue")
		}
	case QuestionShortText:
		if len(q.Key.Accepted) == 0 {
			return Validation("short_text question needs at least one accepted answer")
		}
		switch q.Key.Mode {
		case MatchExact, MatchCasefold:
		case MatchRegex:
			return Validation("short_text mode 'regex' is not supported")
		default:
			return Validation("short_text mode must be 'exact' or 'casefold'")
		}
	default:
		return Validation("unknown question type: " + string(q.Type))
	}
	return nil
}

// QuestionRef links a question into a quiz with ordering and per-quiz
// point/timer overrides.
type QuestionRef struct {
	Question     Question `json:"question"`
	Order        int      `json:"order"`
	Points       *int     `json:"points,omitempty"`
	TimerSeconds *int     `json:"timerSeconds,omitempty"`
}

// EffectivePoints returns the per-quiz override, else the question default.
func (r QuestionRef) EffectivePoints() int {
	if r.Points != nil {
		return *r.Points
	}
	if r.Question.DefaultPoints > 0 {
		return r.Question.DefaultPoints
	}
	return 100
}

// Timer window bounds in seconds.
const (
	MinTimerSeconds = 3
	MaxTimerSeconds = 1800
)

// EffectiveTimerSeconds returns the per-quiz override, else the question
// default, clamped to the allowed window bounds.
func (r QuestionRef) EffectiveTimerSeconds() int {
	seconds := 20
	if r.TimerSeconds != nil {
		seconds = *r.TimerSeconds
	} else if r.Question.DefaultTimerSeconds > 0 {
		seconds = r.Question.DefaultTimerSeconds
	}
	if seconds < MinTimerSeconds {
		return MinTimerSeconds
	}
	if seconds > MaxTimerSeconds {
		return MaxTimerSeconds
	}
	return seconds
}

// QuizDefinition is the read-only quiz content the session engine consumes.
type QuizDefinition struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Published bool          `json:"published"`
	Questions []QuestionRef `json:"questions"`
}

const minOrderSentinel = -1 << 31

// FirstQuestion returns the ref with the minimum order.
func (q QuizDefinition) FirstQuestion() (QuestionRef, bool) {
	return q.NextAfter(minOrderSentinel)
}

// NextAfter returns the ref with the smallest order strictly greater than
// the given order. Order values are unique per quiz but may have gaps.
func (q QuizDefinition) NextAfter(order int) (QuestionRef, bool) {
	var best QuestionRef
	found := false
	for _, ref := range q.Questions {
		if ref.Order <= order {
			continue
		}
		if !found || ref.Order < best.Order {
			best = ref
			found = true
		}
	}
	return best, found
}

// SortQuestions orders the refs in place by their order value.
func (q *QuizDefinition) SortQuestions() {
	sort.Slice(q.Questions, func(i, j int) bool {
		return q.Questions[i].Order < q.Questions[j].Order
	})
}

// LobbyStatus is the session lifecycle state.
type LobbyStatus string

const (
	LobbyPending LobbyStatus = "pending"
	LobbyRunning LobbyStatus = "running"
	LobbyPaused  LobbyStatus = "paused"
	LobbyEnded   LobbyStatus = "ended"
)

// Lobby is one running instance of a quiz. Mutated only by the session
// engine, under the owning session's lock.
type Lobby struct {
	ID     string
	Code   string
	QuizID string
	HostID string
	Status LobbyStatus

	// Active question snapshot. CurrentQuestion is non-nil iff
	// QuestionStartedAt is non-nil. DurationSeconds is captured at
	// activation so mid-session quiz edits cannot change a live window.
	CurrentQuestion   *QuestionRef
	QuestionStartedAt *time.Time
	DurationSeconds   *int

	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}

// Participant is one player inside a lobby. Disconnection is not removal:
// participants are never deleted mid-session.
type Participant struct {
	ID        string
	LobbyID   string
	UserID    string // empty for guest nicknames
	Nickname  string
	IsHost    bool
	Connected bool
	Score     int
	JoinedAt  time.Time
	LeftAt    *time.Time
}

// Answer is one scored submission. Created exactly once per
// (participant, question) and never mutated.
type Answer struct {
	ID             string
	LobbyID        string
	ParticipantID  string
	QuestionOrder  int
	SubmittedAt    time.Time
	ResponseTimeMS int
	Payload        json.RawMessage
	IsCorrect      bool
	PointsAwarded  int
	Evaluation     string // freeform note, e.g. "late"
}

// MaxResponseTimeMS caps recorded response times at one hour.
const MaxResponseTimeMS = 60 * 60 * 1000

// ParticipationRecord is the immutable history entry written once per
// completed lobby.
type ParticipationRecord struct {
	ID          string
	UserID      string
	QuizID      string
	LobbyID     string
	FinalScore  int
	CompletedAt time.Time
}

// EventType enumerates the lifecycle transitions worth recording.
type EventType string

const (
	EventLobbyCreated      EventType = "lobby_created"
	EventLobbyStarted      EventType = "lobby_started"
	EventLobbyEnded        EventType = "lobby_ended"
	EventStatusChanged     EventType = "status_changed"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
)

// GameEvent is one append-only lifecycle entry.
type GameEvent struct {
	Type          EventType
	LobbyID       string
	QuizID        string
	ParticipantID string
	Payload       map[string]any
	CreatedAt     time.Time
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	Connected     bool   `json:"connected"`
}

// Leaderboard captures the ordered scoreboard for a lobby.
type Leaderboard struct {
	LobbyID   string             `json:"lobbyId"`
	Status    LobbyStatus        `json:"status"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
