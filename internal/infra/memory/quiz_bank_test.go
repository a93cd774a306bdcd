package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestQuizBankCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: MustStaticQuizLoader(map[string]domain.QuizDefinition{
			"quiz-1": sampleQuiz(),
		}),
	}
	bank := NewQuizBank(loader, time.Minute)

	if _, err := bank.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := bank.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizBankUnknownQuiz(t *testing.T) {
	bank := NewQuizBank(MustStaticQuizLoader(nil), time.Minute)
	if _, err := bank.GetQuiz(context.Background(), "quiz-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStaticQuizLoaderValidatesKeys(t *testing.T) {
	bad := map[string]domain.QuizDefinition{
		"quiz-bad": {
			ID:        "quiz-bad",
			Published: true,
			Questions: []domain.QuestionRef{
				{Order: 1, Question: domain.Question{
					ID:   "q1",
					Type: domain.QuestionShortText,
					Text: "regex?",
					Key:  domain.AnswerKey{Accepted: []string{"x"}, Mode: domain.MatchRegex},
				}},
			},
		},
	}
	if _, err := NewStaticQuizLoader(bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for regex mode, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.QuizDefinition {
	idx := 1
	return domain.QuizDefinition{
		ID:        "quiz-1",
		Title:     "Sample",
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
	}
}
