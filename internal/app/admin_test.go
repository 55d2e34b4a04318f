package app_test

import (
	"context"
	"testing"
	"time"

	"contest-engine/internal/app"
	"contest-engine/internal/domain"
)

func validQuestionInput() app.QuestionInput {
	return app.QuestionInput{
		Title:          "Capital of France?",
		Points:         10,
		MaxTimeSeconds: 30,
		Choices: []app.ChoiceInput{
			{Value: "Paris", IsCorrect: true},
			{Value: "Lyon"},
		},
	}
}

func TestCreateContestValidatesWindow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.service.CreateContest(ctx, "admin-1", app.ContestInput{
		Title:     "Backwards",
		StartTime: base.Add(time.Hour),
		EndTime:   base,
	})
	if !domain.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}

	contest, err := e.service.CreateContest(ctx, "admin-1", app.ContestInput{
		Title:     "Evening Round",
		StartTime: base,
		EndTime:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if contest.ID == "" || contest.CreatedBy != "admin-1" {
		t.Fatalf("unexpected contest: %+v", contest)
	}
}

func TestUpdateContestBlockedAfterFinalize(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	if _, err := e.contests.ClaimFinalize(ctx, "c1", base); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err := e.service.UpdateContest(ctx, "c1", app.ContestInput{
		Title: "Renamed", StartTime: base, EndTime: base.Add(time.Hour),
	})
	if !domain.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestAddQuestionValidatesChoices(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	in := validQuestionInput()
	in.Choices = in.Choices[:1]
	if _, err := e.service.AddQuestion(ctx, "c1", "admin-1", in); !domain.IsValidation(err) {
		t.Fatalf("single choice: got %v, want validation error", err)
	}

	in = validQuestionInput()
	in.Choices[1].IsCorrect = true // two correct on a single-select
	if _, err := e.service.AddQuestion(ctx, "c1", "admin-1", in); !domain.IsValidation(err) {
		t.Fatalf("two correct single-select: got %v, want validation error", err)
	}

	in = validQuestionInput()
	in.IsMultiple = true
	in.Choices[0].IsCorrect = false
	if _, err := e.service.AddQuestion(ctx, "c1", "admin-1", in); !domain.IsValidation(err) {
		t.Fatalf("multi-select without correct: got %v, want validation error", err)
	}

	in = validQuestionInput()
	in.Points = 0
	if _, err := e.service.AddQuestion(ctx, "c1", "admin-1", in); !domain.IsValidation(err) {
		t.Fatalf("zero points: got %v, want validation error", err)
	}
}

func TestAddQuestionAppendsOrder(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	q, err := e.service.AddQuestion(ctx, "c1", "admin-1", validQuestionInput())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// The fixture seeds orders 1 and 2.
	if q.Order != 3 {
		t.Fatalf("got order %d, want 3", q.Order)
	}
	if len(q.Choices) != 2 || q.Choices[0].ID == "" {
		t.Fatalf("choices missing generated ids: %+v", q.Choices)
	}
}

func TestImportQuestionsIsAllOrNothingOnValidation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	bad := validQuestionInput()
	bad.Choices = nil
	if _, err := e.service.ImportQuestions(ctx, "c1", "admin-1", []app.QuestionInput{validQuestionInput(), bad}); !domain.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
	questions, _ := e.contests.GetQuestions(ctx, "c1")
	if len(questions) != 2 {
		t.Fatalf("failed import wrote questions: %d", len(questions))
	}

	imported, err := e.service.ImportQuestions(ctx, "c1", "admin-1", []app.QuestionInput{
		validQuestionInput(), validQuestionInput(),
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 2 {
		t.Fatalf("got %d imported, want 2", imported)
	}
}

func TestAttachQuestionsCopiesWithFreshIDs(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	source, err := e.service.CreateContest(ctx, "admin-1", app.ContestInput{
		Title: "Bank", StartTime: base.Add(-2 * time.Hour), EndTime: base.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	sourceQ, err := e.service.AddQuestion(ctx, source.ID, "admin-1", validQuestionInput())
	if err != nil {
		t.Fatalf("add source question: %v", err)
	}

	added, err := e.service.AttachQuestions(ctx, "c1", "admin-1", []string{sourceQ.ID})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if added != 1 {
		t.Fatalf("got %d added, want 1", added)
	}

	questions, _ := e.contests.GetQuestions(ctx, "c1")
	var copied *domain.Question
	for i := range questions {
		if questions[i].Title == sourceQ.Title {
			copied = &questions[i]
		}
	}
	if copied == nil {
		t.Fatalf("attached question not found in target contest")
	}
	if copied.ID == sourceQ.ID {
		t.Fatalf("attach must copy, not share the question id")
	}
	if copied.Order != 3 {
		t.Fatalf("attached question order: got %d, want 3", copied.Order)
	}
}

func TestUpdateQuestionKeepsIdentityAndOrder(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	in := validQuestionInput()
	in.Title = "Rewritten"
	updated, err := e.service.UpdateQuestion(ctx, "q1", in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "q1" || updated.Order != 1 {
		t.Fatalf("update changed identity: %+v", updated)
	}
	if updated.Title != "Rewritten" {
		t.Fatalf("title not updated: %q", updated.Title)
	}
}

func TestDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	if err := e.service.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.service.DeleteQuestion(ctx, "q1"); err != domain.ErrQuestionNotFound {
		t.Fatalf("second delete: got %v, want ErrQuestionNotFound", err)
	}
}

func TestManageQuestionsIncludesCorrectFlags(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	questions, err := e.service.ManageQuestions(ctx, "c1")
	if err != nil {
		t.Fatalf("manage: %v", err)
	}
	found := false
	for _, q := range questions {
		for _, c := range q.Choices {
			if c.IsCorrect {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("admin listing lost correct flags")
	}
}
