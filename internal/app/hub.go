package app

import (
	"sync"

	"contest-engine/internal/domain"
)

// Hub fans leaderboard snapshots out to in-process subscribers, one group per
// contest. Websocket connections subscribe here and receive a push on every
// accepted submission.
type Hub struct {
	mu       sync.Mutex
	contests map[string]map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{contests: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel of leaderboard updates for a contest. The caller
// must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(contestID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	subs, ok := h.contests[contestID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.contests[contestID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.contests[contestID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.contests, contestID)
		}
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of the contest. Slow
// consumers have their stale pending update dropped rather than blocking the
// publisher.
func (h *Hub) Publish(contestID string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.contests[contestID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
