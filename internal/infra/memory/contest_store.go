package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"contest-engine/internal/domain"
)

// ContestStore is an in-memory implementation of app.ContestStore, used when
// no Postgres is configured and throughout the test suites.
type ContestStore struct {
	mu        sync.RWMutex
	contests  map[string]domain.Contest
	questions map[string]domain.Question
}

func NewContestStore() *ContestStore {
	return &ContestStore{
		contests:  make(map[string]domain.Contest),
		questions: make(map[string]domain.Question),
	}
}

func (s *ContestStore) GetContest(_ context.Context, contestID string) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, ok := s.contests[contestID]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return contest, nil
}

func (s *ContestStore) ListContests(_ context.Context) ([]domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contest, 0, len(s.contests))
	for _, c := range s.contests {
		out = append(out, c)
	}
	return out, nil
}

func (s *ContestStore) CreateContest(_ context.Context, c domain.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[c.ID] = c
	return nil
}

func (s *ContestStore) UpdateContest(_ context.Context, c domain.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[c.ID]; !ok {
		return domain.ErrContestNotFound
	}
	s.contests[c.ID] = c
	return nil
}

func (s *ContestStore) GetQuestions(_ context.Context, contestID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.ContestID == contestID {
			out = append(out, q)
		}
	}
	sortQuestions(out)
	return out, nil
}

func (s *ContestStore) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *ContestStore) AddQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[q.ContestID]; !ok {
		return domain.ErrContestNotFound
	}
	s.questions[q.ID] = q
	return nil
}

func (s *ContestStore) UpdateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.questions[q.ID] = q
	return nil
}

func (s *ContestStore) DeleteQuestion(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, questionID)
	return nil
}

func (s *ContestStore) ClaimFinalize(_ context.Context, contestID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest, ok := s.contests[contestID]
	if !ok {
		return false, domain.ErrContestNotFound
	}
	if contest.FinalizedAt != nil {
		return false, nil
	}
	stamp := at
	contest.FinalizedAt = &stamp
	contest.UpdatedAt = at
	s.contests[contestID] = contest
	return true, nil
}

func sortQuestions(questions []domain.Question) {
	sort.Slice(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
}
