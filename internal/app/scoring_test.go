package app

import (
	"testing"

	"contest-engine/internal/domain"
)

func scoringQuestion(isMultiple bool) domain.Question {
	return domain.Question{
		ID:             "q1",
		IsMultiple:     isMultiple,
		Points:         10,
		MaxTimeSeconds: 30,
		Choices: []domain.Choice{
			{ID: "a", Value: "A", IsCorrect: true},
			{ID: "b", Value: "B", IsCorrect: isMultiple},
			{ID: "c", Value: "C"},
		},
	}
}

func TestScoreExactMatch(t *testing.T) {
	q := scoringQuestion(false)
	if got := Score(q, []string{"a"}, 5); got != 10 {
		t.Fatalf("correct on-time answer: got %d, want 10", got)
	}
}

func TestScoreRejectsWrongSets(t *testing.T) {
	q := scoringQuestion(true) // correct set is {a, b}
	cases := []struct {
		name    string
		choices []string
	}{
		{"incorrect", []string{"c"}},
		{"subset", []string{"a"}},
		{"superset", []string{"a", "b", "c"}},
		{"partial overlap", []string{"a", "c"}},
	}
	for _, tc := range cases {
		if got := Score(q, tc.choices, 5); got != 0 {
			t.Errorf("%s: got %d, want 0", tc.name, got)
		}
	}
}

func TestScoreOrderIndependent(t *testing.T) {
	q := scoringQuestion(true)
	if got := Score(q, []string{"b", "a"}, 5); got != 10 {
		t.Fatalf("choice order must not matter: got %d, want 10", got)
	}
}

func TestScoreDuplicateChoicesCollapse(t *testing.T) {
	q := scoringQuestion(false)
	if got := Score(q, []string{"a", "a"}, 5); got != 10 {
		t.Fatalf("duplicated correct choice: got %d, want 10", got)
	}
}

func TestScoreZeroWhenLate(t *testing.T) {
	q := scoringQuestion(false)
	if got := Score(q, []string{"a"}, 31); got != 0 {
		t.Fatalf("late answer: got %d, want 0", got)
	}
	if got := Score(q, []string{"a"}, 30); got != 10 {
		t.Fatalf("answer at the limit: got %d, want 10", got)
	}
}

func TestClampTime(t *testing.T) {
	if got := clampTime(0); got != 1 {
		t.Fatalf("clamp of 0: got %d, want 1", got)
	}
	if got := clampTime(-7); got != 1 {
		t.Fatalf("clamp of negative: got %d, want 1", got)
	}
	if got := clampTime(12); got != 12 {
		t.Fatalf("clamp of positive: got %d, want 12", got)
	}
}
