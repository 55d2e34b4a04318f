package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"contest-engine/internal/domain"
)

// Leaderboard is an in-memory implementation of app.LeaderboardStore.
type Leaderboard struct {
	mu    sync.RWMutex
	live  map[string]map[string]liveEntry
	final map[string][]domain.LeaderboardEntry
}

type liveEntry struct {
	score     int
	reachedAt time.Time
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		live:  make(map[string]map[string]liveEntry),
		final: make(map[string][]domain.LeaderboardEntry),
	}
}

func (b *Leaderboard) Record(_ context.Context, contestID, userID string, score int, reachedAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	board, ok := b.live[contestID]
	if !ok {
		board = make(map[string]liveEntry)
		b.live[contestID] = board
	}
	current, ok := board[userID]
	// A zero-gain record must not move the tie-break instant.
	if ok && score <= current.score {
		return nil
	}
	board[userID] = liveEntry{score: score, reachedAt: reachedAt}
	return nil
}

func (b *Leaderboard) Top(_ context.Context, contestID string, limit, offset int) ([]domain.LeaderboardEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ranked := b.rankedLocked(contestID)
	if offset >= len(ranked) {
		return []domain.LeaderboardEntry{}, nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end], nil
}

func (b *Leaderboard) Rank(_ context.Context, contestID, userID string) (int, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if final, ok := b.final[contestID]; ok {
		for _, e := range final {
			if e.UserID == userID {
				return e.Rank, true, nil
			}
		}
		return 0, false, nil
	}
	for _, e := range b.rankedLocked(contestID) {
		if e.UserID == userID {
			return e.Rank, true, nil
		}
	}
	return 0, false, nil
}

func (b *Leaderboard) ClearLive(_ context.Context, contestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.live, contestID)
	return nil
}

func (b *Leaderboard) SaveFinal(_ context.Context, contestID string, entries []domain.LeaderboardEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]domain.LeaderboardEntry, len(entries))
	copy(snapshot, entries)
	b.final[contestID] = snapshot
	delete(b.live, contestID)
	return nil
}

func (b *Leaderboard) GetFinal(_ context.Context, contestID string) ([]domain.LeaderboardEntry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, ok := b.final[contestID]
	return entries, ok, nil
}

func (b *Leaderboard) rankedLocked(contestID string) []domain.LeaderboardEntry {
	board := b.live[contestID]
	entries := make([]domain.LeaderboardEntry, 0, len(board))
	reached := make(map[string]time.Time, len(board))
	for userID, e := range board {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Score: e.score})
		reached[userID] = e.reachedAt
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti, tj := reached[entries[i].UserID], reached[entries[j].UserID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
