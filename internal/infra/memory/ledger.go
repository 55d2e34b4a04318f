package memory

import (
	"context"
	"sort"
	"sync"

	"contest-engine/internal/domain"
)

// Ledger is an in-memory implementation of app.Ledger. The answers map keyed
// by the full triple makes the uniqueness check and the insert a single
// critical section, mirroring the unique index the Postgres store relies on.
type Ledger struct {
	mu           sync.RWMutex
	participants map[participantKey]domain.Participant
	answers      map[answerKey]domain.Answer
}

type participantKey struct {
	contestID string
	userID    string
}

type answerKey struct {
	contestID  string
	questionID string
	userID     string
}

func NewLedger() *Ledger {
	return &Ledger{
		participants: make(map[participantKey]domain.Participant),
		answers:      make(map[answerKey]domain.Answer),
	}
}

func (l *Ledger) JoinParticipant(_ context.Context, p domain.Participant) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := participantKey{p.ContestID, p.UserID}
	if _, ok := l.participants[key]; ok {
		return false, nil
	}
	l.participants[key] = p
	return true, nil
}

func (l *Ledger) IsParticipant(_ context.Context, contestID, userID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.participants[participantKey{contestID, userID}]
	return ok, nil
}

func (l *Ledger) Participants(_ context.Context, contestID string) ([]domain.Participant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for key, p := range l.participants {
		if key.contestID == contestID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *Ledger) InsertAnswer(_ context.Context, a domain.Answer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := answerKey{a.ContestID, a.QuestionID, a.UserID}
	if _, ok := l.answers[key]; ok {
		return domain.ErrAlreadyAnswered
	}
	l.answers[key] = a
	return nil
}

func (l *Ledger) GetAnswer(_ context.Context, contestID, questionID, userID string) (domain.Answer, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.answers[answerKey{contestID, questionID, userID}]
	return a, ok, nil
}

func (l *Ledger) UserAnswers(_ context.Context, contestID, userID string) ([]domain.Answer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for key, a := range l.answers {
		if key.contestID == contestID && key.userID == userID {
			out = append(out, a)
		}
	}
	sortAnswers(out)
	return out, nil
}

func (l *Ledger) ContestAnswers(_ context.Context, contestID string) ([]domain.Answer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for key, a := range l.answers {
		if key.contestID == contestID {
			out = append(out, a)
		}
	}
	sortAnswers(out)
	return out, nil
}

func sortAnswers(answers []domain.Answer) {
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].SubmittedAt.Before(answers[j].SubmittedAt)
	})
}
