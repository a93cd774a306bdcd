package app

import (
	"encoding/json"
	"testing"

	"trivia-session-service/internal/domain"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestEvaluateMultipleChoice(t *testing.T) {
	q := domain.Question{
		Type:    domain.QuestionMultipleChoice,
		Choices: []string{"A", "B", "C"},
		Key:     domain.AnswerKey{CorrectIndex: intp(1)},
	}

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"correct index", `{"index":1}`, true},
		{"wrong index", `{"index":0}`, false},
		{"out of range", `{"index":7}`, false},
		{"missing index", `{}`, false},
		{"null payload", `null`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := domain.ParseAnswerPayload(q.Type, json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := Evaluate(q, p); got != tc.want {
				t.Fatalf("Evaluate(%s) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestEvaluateTrueFalse(t *testing.T) {
	q := domain.Question{
		Type: domain.QuestionTrueFalse,
		Key:  domain.AnswerKey{IsTrue: boolp(true)},
	}

	if p, _ := domain.ParseAnswerPayload(q.Type, json.RawMessage(`{"answer":true}`)); !Evaluate(q, p) {
		t.Fatalf("expected true answer to be correct")
	}
	if p, _ := domain.ParseAnswerPayload(q.Type, json.RawMessage(`{"answer":false}`)); Evaluate(q, p) {
		t.Fatalf("expected false answer to be incorrect")
	}
}

func TestEvaluateShortText(t *testing.T) {
	cases := []struct {
		name string
		mode domain.MatchMode
		raw  string
		want bool
	}{
		{"casefold with whitespace", domain.MatchCasefold, `{"answer":"  PARIS "}`, true},
		{"casefold alias", domain.MatchCasefold, `{"answer":"city of light"}`, true},
		{"casefold miss", domain.MatchCasefold, `{"answer":"London"}`, false},
		{"exact hit", domain.MatchExact, `{"answer":"Paris"}`, true},
		{"exact case miss", domain.MatchExact, `{"answer":"paris"}`, false},
		{"blank after trim", domain.MatchCasefold, `{"answer":"   "}`, false},
		{"empty answer", domain.MatchCasefold, `{"answer":""}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := domain.Question{
				Type: domain.QuestionShortText,
				Key: domain.AnswerKey{
					Accepted: []string{"Paris", "City of Light"},
					Mode:     tc.mode,
				},
			}
			p, err := domain.ParseAnswerPayload(q.Type, json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := Evaluate(q, p); got != tc.want {
				t.Fatalf("Evaluate(%s, %s) = %v, want %v", tc.mode, tc.raw, got, tc.want)
			}
		})
	}
}

func TestEvaluateRegexModeNeverScores(t *testing.T) {
	q := domain.Question{
		Type: domain.QuestionShortText,
		Key:  domain.AnswerKey{Accepted: []string{"Paris"}, Mode: domain.MatchRegex},
	}
	if err := q.ValidateKey(); err == nil {
		t.Fatalf("expected ValidateKey to reject regex mode")
	}
	p, _ := domain.ParseAnswerPayload(q.Type, json.RawMessage(`{"answer":"Paris"}`))
	if Evaluate(q, p) {
		t.Fatalf("regex mode must not score")
	}
}

func TestEvaluateUnknownTypeIsFalse(t *testing.T) {
	q := domain.Question{Type: "essay"}
	p, err := domain.ParseAnswerPayload(q.Type, json.RawMessage(`{"answer":"anything"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if Evaluate(q, p) {
		t.Fatalf("unknown question type must be incorrect, not an error")
	}
}

func TestParseAnswerPayloadShapeErrors(t *testing.T) {
	if _, err := domain.ParseAnswerPayload(domain.QuestionMultipleChoice, json.RawMessage(`{"index":"one"}`)); err == nil {
		t.Fatalf("expected validation error for non-integer index")
	}
	if _, err := domain.ParseAnswerPayload(domain.QuestionTrueFalse, json.RawMessage(`{"answer":"yes"}`)); err == nil {
		t.Fatalf("expected validation error for non-boolean answer")
	}
}
