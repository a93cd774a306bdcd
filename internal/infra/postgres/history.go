package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-session-service/internal/domain"
)

// HistoryRecorder persists participation records. The lobby_id column is
// unique, so the one-record-per-lobby invariant holds in storage too.
type HistoryRecorder struct {
	pool *pgxpool.Pool
}

func NewHistoryRecorder(pool *pgxpool.Pool) *HistoryRecorder {
	return &HistoryRecorder{pool: pool}
}

func (r *HistoryRecorder) RecordParticipation(ctx context.Context, rec domain.ParticipationRecord) (domain.ParticipationRecord, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO participations (user_id, quiz_id, lobby_id, final_score, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		rec.UserID, rec.QuizID, rec.LobbyID, rec.FinalScore, rec.CompletedAt,
	).Scan(&id)
	if err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("insert participation: %w", err)
	}
	rec.ID = fmt.Sprintf("part_%d", id)
	return rec, nil
}
