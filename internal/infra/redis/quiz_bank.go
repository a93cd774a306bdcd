package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-session-service/internal/domain"
)

// QuizLoader fetches quiz definitions from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// QuizBank caches whole quiz definitions in Redis as JSON values
// (SET quiz:{quizID}:def) and falls back to a loader on cache miss.
type QuizBank struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizBank(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizBank {
	return &QuizBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuizBank) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	key := b.defKey(quizID)

	if quiz, ok := b.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := b.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := b.cached(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := b.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			// Cache fill is best-effort; the loader result is authoritative.
			_ = b.client.Set(ctx, key, raw, b.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (b *QuizBank) cached(ctx context.Context, key string) (domain.QuizDefinition, bool) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuizDefinition{}, false
	}
	var quiz domain.QuizDefinition
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizDefinition{}, false
	}
	return quiz, true
}

func (b *QuizBank) defKey(quizID string) string {
	return "quiz:" + quizID + ":def"
}

func (b *QuizBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
