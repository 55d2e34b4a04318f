package domain

import (
	"testing"
	"time"
)

func TestStatusOfPartitionsTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	contest := Contest{ID: "c1", StartTime: start, EndTime: end}

	cases := []struct {
		name string
		now  time.Time
		want ContestStatus
	}{
		{"before start", start.Add(-time.Second), StatusUpcoming},
		{"at start", start, StatusActive},
		{"mid window", start.Add(30 * time.Minute), StatusActive},
		{"at end", end, StatusActive},
		{"after end", end.Add(time.Second), StatusPast},
	}
	for _, tc := range cases {
		if got := StatusOf(contest, tc.now); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestCorrectChoiceIDs(t *testing.T) {
	q := Question{
		Choices: []Choice{
			{ID: "a", IsCorrect: true},
			{ID: "b"},
			{ID: "c", IsCorrect: true},
		},
	}
	correct := q.CorrectChoiceIDs()
	if len(correct) != 2 {
		t.Fatalf("expected 2 correct choices, got %d", len(correct))
	}
	if _, ok := correct["b"]; ok {
		t.Fatalf("choice b must not be marked correct")
	}
}
