package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"contest-engine/internal/app"
	"contest-engine/internal/domain"
)

// ContestCache is a read-through decorator over an app.ContestStore. Contest
// metadata and question sets are cached with a TTL so hot leaderboard and
// submit paths avoid repeated store hits; writes invalidate synchronously,
// keeping the cache consistent with every ledger-adjacent mutation.
type ContestCache struct {
	next  app.ContestStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu        sync.RWMutex
	contests  map[string]cachedContest
	questions map[string]cachedQuestions
}

type cachedContest struct {
	contest   domain.Contest
	expiresAt time.Time
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewContestCache(next app.ContestStore, ttl time.Duration) *ContestCache {
	return &ContestCache{
		next:      next,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		contests:  make(map[string]cachedContest),
		questions: make(map[string]cachedQuestions),
	}
}

func (c *ContestCache) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.contests[contestID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.contest, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("contest:"+contestID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.contests[contestID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.contest, nil
		}
		c.mu.RUnlock()

		contest, err := c.next.GetContest(ctx, contestID)
		if err != nil {
			return domain.Contest{}, err
		}

		c.mu.Lock()
		c.contests[contestID] = cachedContest{contest: contest, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (c *ContestCache) GetQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.questions[contestID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("questions:"+contestID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.questions[contestID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.next.GetQuestions(ctx, contestID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.questions[contestID] = cachedQuestions{questions: questions, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *ContestCache) ListContests(ctx context.Context) ([]domain.Contest, error) {
	return c.next.ListContests(ctx)
}

func (c *ContestCache) CreateContest(ctx context.Context, contest domain.Contest) error {
	return c.next.CreateContest(ctx, contest)
}

func (c *ContestCache) UpdateContest(ctx context.Context, contest domain.Contest) error {
	if err := c.next.UpdateContest(ctx, contest); err != nil {
		return err
	}
	c.invalidateContest(contest.ID)
	return nil
}

func (c *ContestCache) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return c.next.GetQuestion(ctx, questionID)
}

func (c *ContestCache) AddQuestion(ctx context.Context, q domain.Question) error {
	if err := c.next.AddQuestion(ctx, q); err != nil {
		return err
	}
	c.invalidateQuestions(q.ContestID)
	return nil
}

func (c *ContestCache) UpdateQuestion(ctx context.Context, q domain.Question) error {
	if err := c.next.UpdateQuestion(ctx, q); err != nil {
		return err
	}
	c.invalidateQuestions(q.ContestID)
	return nil
}

func (c *ContestCache) DeleteQuestion(ctx context.Context, questionID string) error {
	q, err := c.next.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := c.next.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}
	c.invalidateQuestions(q.ContestID)
	return nil
}

func (c *ContestCache) ClaimFinalize(ctx context.Context, contestID string, at time.Time) (bool, error) {
	claimed, err := c.next.ClaimFinalize(ctx, contestID, at)
	if err != nil {
		return false, err
	}
	c.invalidateContest(contestID)
	return claimed, nil
}

func (c *ContestCache) invalidateContest(contestID string) {
	c.mu.Lock()
	delete(c.contests, contestID)
	c.mu.Unlock()
}

func (c *ContestCache) invalidateQuestions(contestID string) {
	c.mu.Lock()
	delete(c.questions, contestID)
	c.mu.Unlock()
}

func (c *ContestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
