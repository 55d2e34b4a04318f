package app

import "contest-engine/internal/domain"

// Score awards question.Points when the submitted choice set exactly equals
// the correct choice set and the answer arrived within the time limit, else 0.
// Subsets, supersets and partial overlaps all score zero; there is no speed
// bonus beyond the binary on-time cutoff. Pure; the caller persists the result.
func Score(q domain.Question, choiceIDs []string, timeTakenSeconds int) int {
	if timeTakenSeconds > q.MaxTimeSeconds {
		return 0
	}

	submitted := make(map[string]struct{}, len(choiceIDs))
	for _, id := range choiceIDs {
		submitted[id] = struct{}{}
	}

	correct := q.CorrectChoiceIDs()
	if len(submitted) != len(correct) {
		return 0
	}
	for id := range submitted {
		if _, ok := correct[id]; !ok {
			return 0
		}
	}
	return q.Points
}

// clampTime normalizes the client-reported elapsed seconds to at least 1 so
// zero or negative values cannot game the ledger.
func clampTime(timeTakenSeconds int) int {
	if timeTakenSeconds < 1 {
		return 1
	}
	return timeTakenSeconds
}
