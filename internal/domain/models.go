package domain

import "time"

// ContestStatus is derived from the clock, never stored.
type ContestStatus string

const (
	StatusUpcoming ContestStatus = "upcoming"
	StatusActive   ContestStatus = "active"
	StatusPast     ContestStatus = "past"
)

// Contest is a scheduled, time-boxed set of MCQ questions.
type Contest struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
	CreatedBy   string     `json:"createdById,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// StatusOf partitions time into upcoming/active/past. The end bound is
// inclusive-active: a submission arriving exactly at EndTime is still in.
func StatusOf(c Contest, now time.Time) ContestStatus {
	if now.Before(c.StartTime) {
		return StatusUpcoming
	}
	if now.After(c.EndTime) {
		return StatusPast
	}
	return StatusActive
}

// Choice is a selectable option. IsCorrect never leaves the server for
// non-admin callers.
type Choice struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	IsCorrect bool   `json:"-"`
}

// Question is a single- or multi-select MCQ attached to one contest.
type Question struct {
	ID             string   `json:"id"`
	ContestID      string   `json:"-"`
	Order          int      `json:"order"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	IsMultiple     bool     `json:"isMultiple"`
	Points         int      `json:"points"`
	MaxTimeSeconds int      `json:"maxTimeSeconds"`
	Choices        []Choice `json:"choices"`
	CreatedBy      string   `json:"createdById,omitempty"`
}

// CorrectChoiceIDs returns the set of correct choice ids for exact-match scoring.
func (q Question) CorrectChoiceIDs() map[string]struct{} {
	correct := make(map[string]struct{})
	for _, c := range q.Choices {
		if c.IsCorrect {
			correct[c.ID] = struct{}{}
		}
	}
	return correct
}

// Participant records a join event. Joins are durable and never undone.
type Participant struct {
	ContestID string    `json:"contestId"`
	UserID    string    `json:"userId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Answer is one accepted submission. At most one exists per
// (contest, question, user) triple and it is never mutated.
type Answer struct {
	ContestID        string    `json:"contestId"`
	QuestionID       string    `json:"questionId"`
	UserID           string    `json:"userId"`
	ChoiceIDs        []string  `json:"choiceIds"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	AwardedPoints    int       `json:"awardedPoints"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// AnswerSubmission is the scoring signal from clients.
type AnswerSubmission struct {
	QuestionID       string   `json:"questionId"`
	ChoiceIDs        []string `json:"choiceIds"`
	TimeTakenSeconds int      `json:"timeTakenSeconds"`
}

// SubmitResult is returned to the caller after an accepted submission.
type SubmitResult struct {
	Score         int `json:"score"`
	AwardedPoints int `json:"awardedPoints"`
}

// SubmittedAnswer is the caller's own prior answer, echoed on question listings.
type SubmittedAnswer struct {
	ChoiceIDs     []string  `json:"choiceIds"`
	AwardedPoints int       `json:"awardedPoints"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// QuestionView is a participant-facing question: correct flags stripped,
// the caller's answer attached when one exists.
type QuestionView struct {
	Question
	SubmittedAnswer *SubmittedAnswer `json:"submittedAnswer,omitempty"`
}

// LeaderboardEntry is one ranked row. Rank is 1-based.
type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

// Leaderboard is the ranked view of a contest. Source is "live" while the
// contest runs and "final" once the frozen snapshot exists.
type Leaderboard struct {
	ContestID string             `json:"contestId"`
	Source    string             `json:"source"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

const (
	SourceLive  = "live"
	SourceFinal = "final"
)

// Progress is the caller's own standing in a contest.
type Progress struct {
	Score          int  `json:"score"`
	Rank           *int `json:"rank"`
	AttemptedCount int  `json:"attemptedCount"`
}

// Principal is the authenticated identity attached by the upstream gateway.
type Principal struct {
	ID   string
	Role string
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
