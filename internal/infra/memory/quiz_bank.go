package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-session-service/internal/domain"
)

// QuizLoader fetches quiz definitions from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// QuizBank caches quiz definitions with TTL to avoid repeated store hits.
type QuizBank struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.QuizDefinition
	expiresAt time.Time
}

func NewQuizBank(loader QuizLoader, ttl time.Duration) *QuizBank {
	return &QuizBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (b *QuizBank) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[quizID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.quiz, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(quizID, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[quizID]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.quiz, nil
		}
		b.mu.RUnlock()

		quiz, err := b.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		b.mu.Lock()
		b.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (b *QuizBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map (tests/demos).
// Definitions are validated once at construction via ValidateKey, the same
// boundary check the Postgres loader applies.
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizDefinition) (*StaticQuizLoader, error) {
	for _, quiz := range quizzes {
		for _, ref := range quiz.Questions {
			if err := ref.Question.ValidateKey(); err != nil {
				return nil, err
			}
		}
	}
	return &StaticQuizLoader{quizzes: quizzes}, nil
}

// MustStaticQuizLoader is for fixtures that are known valid.
func MustStaticQuizLoader(quizzes map[string]domain.QuizDefinition) *StaticQuizLoader {
	loader, err := NewStaticQuizLoader(quizzes)
	if err != nil {
		panic(err)
	}
	return loader
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		quiz.SortQuestions()
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.NotFound("quiz not found")
}
