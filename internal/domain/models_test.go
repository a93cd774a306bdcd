package domain

import "testing"

func refWithTimer(order, timer int) QuestionRef {
	return QuestionRef{Order: order, TimerSeconds: &timer}
}

func TestEffectiveTimerSecondsClamps(t *testing.T) {
	cases := []struct {
		name string
		ref  QuestionRef
		want int
	}{
		{"default", QuestionRef{}, 20},
		{"question default", QuestionRef{Question: Question{DefaultTimerSeconds: 45}}, 45},
		{"override wins", refWithTimer(1, 30), 30},
		{"below minimum", refWithTimer(1, 1), MinTimerSeconds},
		{"above maximum", refWithTimer(1, 7200), MaxTimerSeconds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ref.EffectiveTimerSeconds(); got != tc.want {
				t.Fatalf("EffectiveTimerSeconds() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNextAfterSkipsGaps(t *testing.T) {
	quiz := QuizDefinition{Questions: []QuestionRef{
		{Order: 5}, {Order: 1}, {Order: 2},
	}}

	first, ok := quiz.FirstQuestion()
	if !ok || first.Order != 1 {
		t.Fatalf("expected first question order 1, got %v %v", first.Order, ok)
	}
	next, ok := quiz.NextAfter(2)
	if !ok || next.Order != 5 {
		t.Fatalf("expected order 5 after 2, got %v %v", next.Order, ok)
	}
	if _, ok := quiz.NextAfter(5); ok {
		t.Fatalf("expected no question after the last order")
	}
}
