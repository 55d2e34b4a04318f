package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"contest-engine/internal/domain"
)

// tieBase packs (score, reachedAt) into one ZSET score: the cumulative score
// occupies the high bits and the inverted unix timestamp the low bits, so
// ZREVRANGE orders by score descending and breaks ties by earliest arrival.
// Scores stay well under 2^22, keeping the composite inside float64 precision.
const tieBase = int64(1) << 31

// Leaderboard is a Redis implementation of app.LeaderboardStore. Live
// rankings live in a ZSET per contest; finalized snapshots are stored as a
// JSON blob and never touched again.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, ttl: ttl}
}

func (b *Leaderboard) Record(ctx context.Context, contestID, userID string, score int, reachedAt time.Time) error {
	// GT keeps the earliest composite for a given score: a later arrival at
	// the same score encodes lower and is ignored.
	err := b.client.ZAddGT(ctx, b.liveKey(contestID), redis.Z{
		Score:  encodeComposite(score, reachedAt),
		Member: userID,
	}).Err()
	if err != nil {
		return err
	}
	if b.ttl > 0 {
		b.client.Expire(ctx, b.liveKey(contestID), b.ttl)
	}
	return nil
}

func (b *Leaderboard) Top(ctx context.Context, contestID string, limit, offset int) ([]domain.LeaderboardEntry, error) {
	results, err := b.client.ZRevRangeWithScores(ctx, b.liveKey(contestID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		userID, _ := result.Member.(string)
		entries[i] = domain.LeaderboardEntry{
			UserID: userID,
			Score:  decodeComposite(result.Score),
			Rank:   offset + i + 1,
		}
	}
	return entries, nil
}

func (b *Leaderboard) Rank(ctx context.Context, contestID, userID string) (int, bool, error) {
	if raw, err := b.client.Get(ctx, b.finalKey(contestID)).Bytes(); err == nil {
		var entries []domain.LeaderboardEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return 0, false, err
		}
		for _, e := range entries {
			if e.UserID == userID {
				return e.Rank, true, nil
			}
		}
		return 0, false, nil
	}

	rank, err := b.client.ZRevRank(ctx, b.liveKey(contestID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int(rank) + 1, true, nil
}

func (b *Leaderboard) ClearLive(ctx context.Context, contestID string) error {
	return b.client.Del(ctx, b.liveKey(contestID)).Err()
}

func (b *Leaderboard) SaveFinal(ctx context.Context, contestID string, entries []domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	// The snapshot is immutable, so it carries no TTL.
	if err := b.client.Set(ctx, b.finalKey(contestID), raw, 0).Err(); err != nil {
		return err
	}
	return b.client.Del(ctx, b.liveKey(contestID)).Err()
}

func (b *Leaderboard) GetFinal(ctx context.Context, contestID string) ([]domain.LeaderboardEntry, bool, error) {
	raw, err := b.client.Get(ctx, b.finalKey(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (b *Leaderboard) liveKey(contestID string) string {
	return "contest:" + contestID + ":leaderboard:live"
}

func (b *Leaderboard) finalKey(contestID string) string {
	return "contest:" + contestID + ":leaderboard:final"
}

func encodeComposite(score int, reachedAt time.Time) float64 {
	inverted := tieBase - reachedAt.Unix()
	if inverted < 0 {
		inverted = 0
	}
	return float64(int64(score)*tieBase + inverted)
}

func decodeComposite(composite float64) int {
	return int(int64(composite) / tieBase)
}
