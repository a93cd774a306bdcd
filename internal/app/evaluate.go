package app

import (
	"strings"

	"trivia-session-service/internal/domain"
)

// Evaluate checks a submission against the question's answer key. It is pure:
// no state, no I/O, and unknown types or empty payloads are simply incorrect.
func Evaluate(q domain.Question, p domain.AnswerPayload) bool {
	if p.Empty {
		return false
	}

	switch q.Type {
	case domain.QuestionMultipleChoice:
		return q.Key.CorrectIndex != nil && p.Index == *q.Key.CorrectIndex
	case domain.QuestionTrueFalse:
		return q.Key.IsTrue != nil && p.Answer == *q.Key.IsTrue
	case domain.QuestionShortText:
		return evaluateShortText(q.Key, p.Text)
	}
	return false
}

func evaluateShortText(key domain.AnswerKey, submitted string) bool {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return false
	}

	switch key.Mode {
	case domain.MatchExact:
		for _, accepted := range key.Accepted {
			if submitted == accepted {
				return true
			}
		}
	case domain.MatchCasefold:
		for _, accepted := range key.Accepted {
			if strings.EqualFold(submitted, accepted) {
				return true
			}
		}
	}
	// MatchRegex has no evaluation rule and is rejected upstream by
	// Question.ValidateKey; anything that slips through never scores.
	return false
}
