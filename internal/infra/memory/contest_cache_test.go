package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"contest-engine/internal/app"
	"contest-engine/internal/domain"
)

type countingStore struct {
	app.ContestStore
	mu            sync.Mutex
	contestCalls  int
	questionCalls int
}

func (s *countingStore) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	s.mu.Lock()
	s.contestCalls++
	s.mu.Unlock()
	return s.ContestStore.GetContest(ctx, contestID)
}

func (s *countingStore) GetQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	s.mu.Lock()
	s.questionCalls++
	s.mu.Unlock()
	return s.ContestStore.GetQuestions(ctx, contestID)
}

func seedStore(t *testing.T) *ContestStore {
	t.Helper()
	store := NewContestStore()
	ctx := context.Background()
	if err := store.CreateContest(ctx, domain.Contest{
		ID: "c1", Title: "Cached", StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed contest: %v", err)
	}
	if err := store.AddQuestion(ctx, domain.Question{
		ID: "q1", ContestID: "c1", Order: 1, Title: "One", Points: 1, MaxTimeSeconds: 10,
		Choices: []domain.Choice{{ID: "a", Value: "A", IsCorrect: true}, {ID: "b", Value: "B"}},
	}); err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return store
}

func TestContestCacheServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{ContestStore: seedStore(t)}
	cache := NewContestCache(backing, time.Minute)

	if _, err := cache.GetContest(ctx, "c1"); err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if _, err := cache.GetContest(ctx, "c1"); err != nil {
		t.Fatalf("get contest 2: %v", err)
	}
	if backing.contestCalls != 1 {
		t.Fatalf("expected one backing read, got %d", backing.contestCalls)
	}

	if _, err := cache.GetQuestions(ctx, "c1"); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if _, err := cache.GetQuestions(ctx, "c1"); err != nil {
		t.Fatalf("get questions 2: %v", err)
	}
	if backing.questionCalls != 1 {
		t.Fatalf("expected one backing question read, got %d", backing.questionCalls)
	}
}

func TestContestCacheInvalidatesOnWrites(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{ContestStore: seedStore(t)}
	cache := NewContestCache(backing, time.Minute)

	if _, err := cache.GetQuestions(ctx, "c1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.AddQuestion(ctx, domain.Question{
		ID: "q2", ContestID: "c1", Order: 2, Title: "Two", Points: 1, MaxTimeSeconds: 10,
		Choices: []domain.Choice{{ID: "c", Value: "C", IsCorrect: true}, {ID: "d", Value: "D"}},
	}); err != nil {
		t.Fatalf("add question: %v", err)
	}
	questions, err := cache.GetQuestions(ctx, "c1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("stale question cache after write: got %d questions", len(questions))
	}
}

func TestContestCacheInvalidatesOnFinalize(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	cache := NewContestCache(store, time.Minute)

	if _, err := cache.GetContest(ctx, "c1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	claimed, err := cache.ClaimFinalize(ctx, "c1", time.Now())
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}
	contest, err := cache.GetContest(ctx, "c1")
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if contest.FinalizedAt == nil {
		t.Fatalf("cache served a stale unfinalized contest")
	}

	claimed, err = cache.ClaimFinalize(ctx, "c1", time.Now())
	if err != nil || claimed {
		t.Fatalf("second claim must lose: claimed=%v err=%v", claimed, err)
	}
}
