package domain

import (
	"bytes"
	"encoding/json"
)

// AnswerPayload is the tagged union of per-question-type submissions.
// It is validated at the boundary; the evaluator never probes raw JSON.
type AnswerPayload struct {
	Type QuestionType

	// Empty marks an absent or contentless submission. Empty payloads are
	// recorded but always evaluate to incorrect.
	Empty bool

	Index  int    // multiple_choice
	Answer bool   // true_false
	Text   string // short_text
}

// ParseAnswerPayload interprets a raw submission against the question type.
// An absent or empty body yields an Empty payload rather than an error;
// a body of the wrong JSON shape is a validation error.
func ParseAnswerPayload(qtype QuestionType, raw json.RawMessage) (AnswerPayload, error) {
	p := AnswerPayload{Type: qtype}
	if isEmptyJSON(raw) {
		p.Empty = true
		return p, nil
	}

	switch qtype {
	case QuestionMultipleChoice:
		var body struct {
			Index *int `json:"index"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return p, Validation("answer payload must be an object with an integer 'index'")
		}
		if body.Index == nil {
			p.Empty = true
			return p, nil
		}
		p.Index = *body.Index
	case QuestionTrueFalse:
		var body struct {
			Answer *bool `json:"answer"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return p, Validation("answer payload must be an object with a boolean 'answer'")
		}
		if body.Answer == nil {
			p.Empty = true
			return p, nil
		}
		p.Answer = *body.Answer
	case QuestionShortText:
		var body struct {
			Answer *string `json:"answer"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return p, Validation("answer payload must be an object with a string 'answer'")
		}
		if body.Answer == nil {
			p.Empty = true
			return p, nil
		}
		p.Text = *body.Answer
	default:
		// Unknown types are recorded as-is and never score.
		p.Empty = true
	}
	return p, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "{}":
		return true
	}
	return false
}
