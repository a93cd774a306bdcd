package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-session-service/internal/domain"
)

// EventTrail appends lifecycle events to the game_events table.
type EventTrail struct {
	pool *pgxpool.Pool
}

func NewEventTrail(pool *pgxpool.Pool) *EventTrail {
	return &EventTrail{pool: pool}
}

func (t *EventTrail) AppendEvent(ctx context.Context, event domain.GameEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = t.pool.Exec(ctx,
		`INSERT INTO game_events (event_type, lobby_id, quiz_id, participant_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		string(event.Type), event.LobbyID, event.QuizID, event.ParticipantID, payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
