package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"contest-engine/internal/domain"
)

// ContestInput is the admin payload for creating or updating a contest.
type ContestInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

// ChoiceInput is one choice in an authoring payload.
type ChoiceInput struct {
	Value     string
	IsCorrect bool
}

// QuestionInput is the admin payload for creating or updating a question.
type QuestionInput struct {
	Title          string
	Description    string
	IsMultiple     bool
	Points         int
	MaxTimeSeconds int
	Choices        []ChoiceInput
}

// CreateContest creates a contest owned by the given admin.
func (s *ContestService) CreateContest(ctx context.Context, createdBy string, in ContestInput) (domain.Contest, error) {
	if err := validateContestInput(in); err != nil {
		return domain.Contest{}, err
	}
	now := s.now()
	contest := domain.Contest{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contests.CreateContest(ctx, contest); err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

// UpdateContest rewrites the mutable contest fields. Finalized contests are
// closed for editing.
func (s *ContestService) UpdateContest(ctx context.Context, contestID string, in ContestInput) (domain.Contest, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.Contest{}, err
	}
	if contest.FinalizedAt != nil {
		return domain.Contest{}, domain.NewValidationError("contest is finalized and can no longer be edited")
	}
	if err := validateContestInput(in); err != nil {
		return domain.Contest{}, err
	}
	contest.Title = strings.TrimSpace(in.Title)
	contest.Description = in.Description
	contest.StartTime = in.StartTime
	contest.EndTime = in.EndTime
	contest.UpdatedAt = s.now()
	if err := s.contests.UpdateContest(ctx, contest); err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

// ManageQuestions returns the full question set including correct flags.
// Callers must enforce the admin role before asking.
func (s *ContestService) ManageQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	return s.contests.GetQuestions(ctx, contestID)
}

// AddQuestion attaches a new question to the contest at the next order slot.
func (s *ContestService) AddQuestion(ctx context.Context, contestID, createdBy string, in QuestionInput) (domain.Question, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return domain.Question{}, err
	}
	if err := validateQuestionInput(in); err != nil {
		return domain.Question{}, err
	}
	existing, err := s.contests.GetQuestions(ctx, contestID)
	if err != nil {
		return domain.Question{}, err
	}
	question := buildQuestion(contestID, createdBy, nextOrder(existing), in)
	if err := s.contests.AddQuestion(ctx, question); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

// UpdateQuestion replaces a question's content and choices in place, keeping
// its id and order.
func (s *ContestService) UpdateQuestion(ctx context.Context, questionID string, in QuestionInput) (domain.Question, error) {
	question, err := s.contests.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	if err := validateQuestionInput(in); err != nil {
		return domain.Question{}, err
	}
	updated := buildQuestion(question.ContestID, question.CreatedBy, question.Order, in)
	updated.ID = question.ID
	if err := s.contests.UpdateQuestion(ctx, updated); err != nil {
		return domain.Question{}, err
	}
	return updated, nil
}

// DeleteQuestion removes a question from its contest.
func (s *ContestService) DeleteQuestion(ctx context.Context, questionID string) error {
	if _, err := s.contests.GetQuestion(ctx, questionID); err != nil {
		return err
	}
	return s.contests.DeleteQuestion(ctx, questionID)
}

// ImportQuestions bulk-creates questions in payload order and reports how many
// were added. The whole batch is validated before anything is written.
func (s *ContestService) ImportQuestions(ctx context.Context, contestID, createdBy string, inputs []QuestionInput) (int, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, domain.NewValidationError("no questions to import", "questions", "required")
	}
	for _, in := range inputs {
		if err := validateQuestionInput(in); err != nil {
			return 0, err
		}
	}
	existing, err := s.contests.GetQuestions(ctx, contestID)
	if err != nil {
		return 0, err
	}
	order := nextOrder(existing)
	for _, in := range inputs {
		if err := s.contests.AddQuestion(ctx, buildQuestion(contestID, createdBy, order, in)); err != nil {
			return 0, err
		}
		order++
	}
	return len(inputs), nil
}

// AttachQuestions copies questions from other contests into this one with
// fresh ids, appended after the current order. Sourcing from a bank is a copy,
// never a shared reference.
func (s *ContestService) AttachQuestions(ctx context.Context, contestID, createdBy string, sourceQuestionIDs []string) (int, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	if len(sourceQuestionIDs) == 0 {
		return 0, domain.NewValidationError("no questions to attach", "questionIds", "required")
	}
	existing, err := s.contests.GetQuestions(ctx, contestID)
	if err != nil {
		return 0, err
	}
	order := nextOrder(existing)
	added := 0
	for _, sourceID := range sourceQuestionIDs {
		source, err := s.contests.GetQuestion(ctx, sourceID)
		if err != nil {
			return added, err
		}
		in := QuestionInput{
			Title:          source.Title,
			Description:    source.Description,
			IsMultiple:     source.IsMultiple,
			Points:         source.Points,
			MaxTimeSeconds: source.MaxTimeSeconds,
		}
		for _, c := range source.Choices {
			in.Choices = append(in.Choices, ChoiceInput{Value: c.Value, IsCorrect: c.IsCorrect})
		}
		if err := s.contests.AddQuestion(ctx, buildQuestion(contestID, createdBy, order, in)); err != nil {
			return added, err
		}
		order++
		added++
	}
	return added, nil
}

func buildQuestion(contestID, createdBy string, order int, in QuestionInput) domain.Question {
	q := domain.Question{
		ID:             uuid.NewString(),
		ContestID:      contestID,
		Order:          order,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		IsMultiple:     in.IsMultiple,
		Points:         in.Points,
		MaxTimeSeconds: in.MaxTimeSeconds,
		CreatedBy:      createdBy,
	}
	for _, c := range in.Choices {
		q.Choices = append(q.Choices, domain.Choice{
			ID:        uuid.NewString(),
			Value:     c.Value,
			IsCorrect: c.IsCorrect,
		})
	}
	return q
}

func nextOrder(questions []domain.Question) int {
	next := 1
	for _, q := range questions {
		if q.Order >= next {
			next = q.Order + 1
		}
	}
	return next
}

func validateContestInput(in ContestInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.NewValidationError("title is required", "title", "required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.NewValidationError("start and end times are required", "startTime", "required")
	}
	if !in.StartTime.Before(in.EndTime) {
		return domain.NewValidationError("startTime must be before endTime", "endTime", "must be after startTime")
	}
	return nil
}

func validateQuestionInput(in QuestionInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.NewValidationError("title is required", "title", "required")
	}
	if in.Points <= 0 {
		return domain.NewValidationError("points must be positive", "points", "must be greater than zero")
	}
	if in.MaxTimeSeconds <= 0 {
		return domain.NewValidationError("maxTimeSeconds must be positive", "maxTimeSeconds", "must be greater than zero")
	}
	if len(in.Choices) < 2 {
		return domain.NewValidationError("a question needs at least two choices", "choices", "at least two required")
	}
	correct := 0
	for _, c := range in.Choices {
		if strings.TrimSpace(c.Value) == "" {
			return domain.NewValidationError("choice values must not be empty", "choices", "empty choice value")
		}
		if c.IsCorrect {
			correct++
		}
	}
	if in.IsMultiple && correct < 1 {
		return domain.NewValidationError("multi-select questions need at least one correct choice", "choices", "mark at least one correct")
	}
	if !in.IsMultiple && correct != 1 {
		return domain.NewValidationError("single-select questions need exactly one correct choice", "choices", "mark exactly one correct")
	}
	return nil
}
