package app

import (
	"context"
	"time"

	"github.com/google/logger"

	"contest-engine/internal/domain"
)

// ContestStore holds contest and question content (in-memory, Postgres, etc).
type ContestStore interface {
	GetContest(ctx context.Context, contestID string) (domain.Contest, error)
	ListContests(ctx context.Context) ([]domain.Contest, error)
	CreateContest(ctx context.Context, c domain.Contest) error
	UpdateContest(ctx context.Context, c domain.Contest) error

	GetQuestions(ctx context.Context, contestID string) ([]domain.Question, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	AddQuestion(ctx context.Context, q domain.Question) error
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, questionID string) error

	// ClaimFinalize atomically sets finalizedAt if it is still unset.
	// Exactly one concurrent caller observes claimed=true.
	ClaimFinalize(ctx context.Context, contestID string, at time.Time) (bool, error)
}

// Ledger is the append-only record of participation and accepted answers.
// It is the single writer of score-affecting state.
type Ledger interface {
	// JoinParticipant is idempotent; created reports whether the row is new.
	JoinParticipant(ctx context.Context, p domain.Participant) (created bool, err error)
	IsParticipant(ctx context.Context, contestID, userID string) (bool, error)
	Participants(ctx context.Context, contestID string) ([]domain.Participant, error)

	// InsertAnswer persists exactly one answer per (contest, question, user)
	// triple. A duplicate insert returns domain.ErrAlreadyAnswered; the check
	// and the write are atomic.
	InsertAnswer(ctx context.Context, a domain.Answer) error
	GetAnswer(ctx context.Context, contestID, questionID, userID string) (domain.Answer, bool, error)
	UserAnswers(ctx context.Context, contestID, userID string) ([]domain.Answer, error)
	ContestAnswers(ctx context.Context, contestID string) ([]domain.Answer, error)
}

// FinalStore holds frozen leaderboard snapshots, written exactly once per
// contest and never recomputed.
type FinalStore interface {
	SaveFinal(ctx context.Context, contestID string, entries []domain.LeaderboardEntry) error
	GetFinal(ctx context.Context, contestID string) (entries []domain.LeaderboardEntry, ok bool, err error)
}

// LeaderboardStore keeps the ranked per-contest view: a mutable live ranking
// while the contest runs and an immutable snapshot once it finalizes.
type LeaderboardStore interface {
	// Record upserts a user's cumulative score in the live ranking. reachedAt
	// is the tie-break instant at which the user arrived at that score.
	Record(ctx context.Context, contestID, userID string, score int, reachedAt time.Time) error
	Top(ctx context.Context, contestID string, limit, offset int) ([]domain.LeaderboardEntry, error)
	// Rank returns the 1-based live rank; ok=false when the user is unranked.
	Rank(ctx context.Context, contestID, userID string) (rank int, ok bool, err error)
	// ClearLive drops the live ranking once the frozen snapshot replaces it.
	ClearLive(ctx context.Context, contestID string) error

	FinalStore
}

// TieredLeaderboard pairs a fast live ranking (Redis or memory) with a durable
// final store (Postgres). Rank reads prefer the frozen snapshot once it exists.
type TieredLeaderboard struct {
	Live  LeaderboardStore
	Final FinalStore
}

func (t *TieredLeaderboard) Record(ctx context.Context, contestID, userID string, score int, reachedAt time.Time) error {
	return t.Live.Record(ctx, contestID, userID, score, reachedAt)
}

func (t *TieredLeaderboard) Top(ctx context.Context, contestID string, limit, offset int) ([]domain.LeaderboardEntry, error) {
	return t.Live.Top(ctx, contestID, limit, offset)
}

func (t *TieredLeaderboard) Rank(ctx context.Context, contestID, userID string) (int, bool, error) {
	if entries, ok, err := t.Final.GetFinal(ctx, contestID); err == nil && ok {
		for _, e := range entries {
			if e.UserID == userID {
				return e.Rank, true, nil
			}
		}
		return 0, false, nil
	}
	return t.Live.Rank(ctx, contestID, userID)
}

func (t *TieredLeaderboard) ClearLive(ctx context.Context, contestID string) error {
	return t.Live.ClearLive(ctx, contestID)
}

func (t *TieredLeaderboard) SaveFinal(ctx context.Context, contestID string, entries []domain.LeaderboardEntry) error {
	if err := t.Final.SaveFinal(ctx, contestID, entries); err != nil {
		return err
	}
	// The snapshot is durable; a leftover live ranking is only wasted space.
	if err := t.Live.ClearLive(ctx, contestID); err != nil {
		logger.Warningf("clear live leaderboard contest=%s: %v", contestID, err)
	}
	return nil
}

func (t *TieredLeaderboard) GetFinal(ctx context.Context, contestID string) ([]domain.LeaderboardEntry, bool, error) {
	return t.Final.GetFinal(ctx, contestID)
}
