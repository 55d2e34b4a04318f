package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/logger"

	"contest-engine/internal/domain"
)

const (
	// DefaultMaxPageSize bounds leaderboard pagination when config leaves it unset.
	DefaultMaxPageSize = 100
	// broadcastSize is how many entries each websocket push carries.
	broadcastSize = 10
)

// ContestService contains the contest engine use cases: joining, question
// listing, answer submission, progress and leaderboard reads, and lifecycle
// finalization. All timing decisions use the service clock, never the client's.
type ContestService struct {
	contests    ContestStore
	ledger      Ledger
	boards      LeaderboardStore
	hub         *Hub
	now         func() time.Time
	maxPageSize int
}

// Option configures a ContestService.
type Option func(*ContestService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ContestService) { s.now = now }
}

// WithMaxPageSize overrides the leaderboard pagination bound.
func WithMaxPageSize(n int) Option {
	return func(s *ContestService) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func NewContestService(contests ContestStore, ledger Ledger, boards LeaderboardStore, opts ...Option) *ContestService {
	s := &ContestService{
		contests:    contests,
		ledger:      ledger,
		boards:      boards,
		hub:         NewHub(),
		now:         time.Now,
		maxPageSize: DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub exposes the broadcast hub for transport-level subscriptions.
func (s *ContestService) Hub() *Hub { return s.hub }

// ListContests returns contests matching the given status, newest start first.
// An empty status returns everything.
func (s *ContestService) ListContests(ctx context.Context, status domain.ContestStatus, limit int) ([]domain.Contest, error) {
	all, err := s.contests.ListContests(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Contest, 0, len(all))
	for _, c := range all {
		if status != "" && domain.StatusOf(c, now) != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetContest returns a single contest by id.
func (s *ContestService) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	return s.contests.GetContest(ctx, contestID)
}

// Join registers the user as a participant. Only allowed while the contest is
// active; re-joining is a no-op and never resets progress.
func (s *ContestService) Join(ctx context.Context, contestID, userID string) error {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	now := s.now()
	if domain.StatusOf(contest, now) != domain.StatusActive {
		return domain.ErrContestNotActive
	}

	created, err := s.ledger.JoinParticipant(ctx, domain.Participant{
		ContestID: contestID,
		UserID:    userID,
		JoinedAt:  now,
	})
	if err != nil {
		return err
	}
	if created {
		// New participants enter the live board at zero so rank reads resolve.
		if err := s.boards.Record(ctx, contestID, userID, 0, now); err != nil {
			logger.Warningf("seed leaderboard entry contest=%s user=%s: %v", contestID, userID, err)
		}
	}
	return nil
}

// Questions lists the contest questions for a participant, correct flags
// stripped, with the caller's own answer attached where one exists.
func (s *ContestService) Questions(ctx context.Context, contestID, userID string) ([]domain.QuestionView, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	joined, err := s.ledger.IsParticipant(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	if !joined {
		return nil, domain.ErrNotAParticipant
	}

	questions, err := s.contests.GetQuestions(ctx, contestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.ledger.UserAnswers(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		view := domain.QuestionView{Question: q}
		if a, ok := byQuestion[q.ID]; ok {
			view.SubmittedAnswer = &domain.SubmittedAnswer{
				ChoiceIDs:     a.ChoiceIDs,
				AwardedPoints: a.AwardedPoints,
				SubmittedAt:   a.SubmittedAt,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Submit accepts one answer for a question. Preconditions are checked in
// order: active contest, participant, question ownership, no prior answer,
// within the time limit. Late submissions are rejected without persisting.
func (s *ContestService) Submit(ctx context.Context, contestID, userID string, sub domain.AnswerSubmission) (domain.SubmitResult, error) {
	if sub.QuestionID == "" {
		return domain.SubmitResult{}, domain.NewValidationError("questionId is required", "questionId", "required")
	}
	if len(sub.ChoiceIDs) == 0 {
		return domain.SubmitResult{}, domain.NewValidationError("at least one choice must be selected", "choiceIds", "required")
	}

	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	now := s.now()
	if domain.StatusOf(contest, now) != domain.StatusActive {
		return domain.SubmitResult{}, domain.ErrContestNotActive
	}

	joined, err := s.ledger.IsParticipant(ctx, contestID, userID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if !joined {
		return domain.SubmitResult{}, domain.ErrNotAParticipant
	}

	question, err := s.contests.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	// A question from another contest is indistinguishable from a missing one.
	if question.ContestID != contestID {
		return domain.SubmitResult{}, domain.ErrQuestionNotFound
	}

	valid := make(map[string]struct{}, len(question.Choices))
	for _, c := range question.Choices {
		valid[c.ID] = struct{}{}
	}
	for _, id := range sub.ChoiceIDs {
		if _, ok := valid[id]; !ok {
			return domain.SubmitResult{}, domain.NewValidationError("unknown choice id", "choiceIds", "must reference choices of the question")
		}
	}

	if _, exists, err := s.ledger.GetAnswer(ctx, contestID, sub.QuestionID, userID); err != nil {
		return domain.SubmitResult{}, err
	} else if exists {
		return domain.SubmitResult{}, domain.ErrAlreadyAnswered
	}

	timeTaken := clampTime(sub.TimeTakenSeconds)
	if timeTaken > question.MaxTimeSeconds {
		return domain.SubmitResult{}, domain.ErrTimeExpired
	}

	answer := domain.Answer{
		ContestID:        contestID,
		QuestionID:       sub.QuestionID,
		UserID:           userID,
		ChoiceIDs:        sub.ChoiceIDs,
		TimeTakenSeconds: timeTaken,
		AwardedPoints:    Score(question, sub.ChoiceIDs, timeTaken),
		SubmittedAt:      now,
	}
	// The insert races with concurrent submissions for the same triple; the
	// store's uniqueness guarantee decides the winner.
	if err := s.ledger.InsertAnswer(ctx, answer); err != nil {
		return domain.SubmitResult{}, err
	}

	total, err := s.cumulativeScore(ctx, contestID, userID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if answer.AwardedPoints > 0 {
		if err := s.boards.Record(ctx, contestID, userID, total, now); err != nil {
			logger.Errorf("update live leaderboard contest=%s user=%s: %v", contestID, userID, err)
		}
	}
	s.publishLive(ctx, contestID)

	return domain.SubmitResult{Score: total, AwardedPoints: answer.AwardedPoints}, nil
}

// Progress reports the caller's own score, live rank and attempted count.
func (s *ContestService) Progress(ctx context.Context, contestID, userID string) (domain.Progress, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return domain.Progress{}, err
	}
	joined, err := s.ledger.IsParticipant(ctx, contestID, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	if !joined {
		return domain.Progress{}, domain.ErrNotAParticipant
	}

	answers, err := s.ledger.UserAnswers(ctx, contestID, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	score := 0
	for _, a := range answers {
		score += a.AwardedPoints
	}

	progress := domain.Progress{Score: score, AttemptedCount: len(answers)}
	rank, ok, err := s.boards.Rank(ctx, contestID, userID)
	if err != nil {
		logger.Warningf("rank read contest=%s user=%s: %v", contestID, userID, err)
	} else if ok {
		progress.Rank = &rank
	}
	return progress, nil
}

// Leaderboard returns the ranked view: live while the contest runs, the frozen
// snapshot afterwards. A read of a past contest triggers finalization lazily.
func (s *ContestService) Leaderboard(ctx context.Context, contestID string, limit, offset int) (domain.Leaderboard, error) {
	if limit <= 0 || limit > s.maxPageSize {
		return domain.Leaderboard{}, domain.NewValidationError("limit out of range", "limit", "must be between 1 and the page size maximum")
	}
	if offset < 0 {
		return domain.Leaderboard{}, domain.NewValidationError("offset out of range", "offset", "must not be negative")
	}

	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	now := s.now()

	if domain.StatusOf(contest, now) == domain.StatusPast {
		if contest.FinalizedAt == nil {
			if err := s.Finalize(ctx, contest); err != nil {
				return domain.Leaderboard{}, err
			}
		}
		entries, ok, err := s.boards.GetFinal(ctx, contestID)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		if !ok {
			// The claim is set but the snapshot is missing: an earlier write
			// failed, or a concurrent winner has not committed yet. The ledger
			// is closed once the contest is past, so recomputing yields the
			// same standing.
			entries, err = s.finalStanding(ctx, contestID)
			if err != nil {
				return domain.Leaderboard{}, err
			}
			if err := s.boards.SaveFinal(ctx, contestID, entries); err != nil {
				logger.Warningf("rewrite final snapshot contest=%s: %v", contestID, err)
			}
		}
		return domain.Leaderboard{
			ContestID: contestID,
			Source:    domain.SourceFinal,
			Entries:   page(entries, limit, offset),
			UpdatedAt: now,
		}, nil
	}

	entries, err := s.boards.Top(ctx, contestID, limit, offset)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		ContestID: contestID,
		Source:    domain.SourceLive,
		Entries:   entries,
		UpdatedAt: now,
	}, nil
}

// Finalize freezes a past contest's leaderboard exactly once. Safe to call
// concurrently: a single CAS claim wins, losers observe finalizedAt set and
// return without recomputing.
func (s *ContestService) Finalize(ctx context.Context, contest domain.Contest) error {
	now := s.now()
	if domain.StatusOf(contest, now) != domain.StatusPast || contest.FinalizedAt != nil {
		return nil
	}
	claimed, err := s.contests.ClaimFinalize(ctx, contest.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	entries, err := s.finalStanding(ctx, contest.ID)
	if err != nil {
		return err
	}
	if err := s.boards.SaveFinal(ctx, contest.ID, entries); err != nil {
		return err
	}
	logger.Infof("finalized contest %s with %d entries", contest.ID, len(entries))
	return nil
}

// finalStanding aggregates the closed ledger into the frozen ranking.
func (s *ContestService) finalStanding(ctx context.Context, contestID string) ([]domain.LeaderboardEntry, error) {
	participants, err := s.ledger.Participants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.ledger.ContestAnswers(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return rankEntries(participants, answers), nil
}

// FinalizeDue sweeps all contests and finalizes those past their end time.
func (s *ContestService) FinalizeDue(ctx context.Context) error {
	contests, err := s.contests.ListContests(ctx)
	if err != nil {
		return err
	}
	for _, c := range contests {
		if err := s.Finalize(ctx, c); err != nil {
			logger.Errorf("finalize contest %s: %v", c.ID, err)
		}
	}
	return nil
}

// RunSweeper finalizes due contests on an interval until ctx is canceled.
func (s *ContestService) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.FinalizeDue(ctx); err != nil {
				logger.Errorf("finalization sweep: %v", err)
			}
		}
	}
}

func (s *ContestService) cumulativeScore(ctx context.Context, contestID, userID string) (int, error) {
	// Always re-derived from the ledger so the running total can never drift
	// from the sum-of-awards invariant.
	answers, err := s.ledger.UserAnswers(ctx, contestID, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, a := range answers {
		total += a.AwardedPoints
	}
	return total, nil
}

func (s *ContestService) publishLive(ctx context.Context, contestID string) {
	entries, err := s.boards.Top(ctx, contestID, broadcastSize, 0)
	if err != nil {
		logger.Warningf("leaderboard broadcast read contest=%s: %v", contestID, err)
		return
	}
	s.hub.Publish(contestID, domain.Leaderboard{
		ContestID: contestID,
		Source:    domain.SourceLive,
		Entries:   entries,
		UpdatedAt: s.now(),
	})
}

// rankEntries aggregates the closed ledger into a strict total order:
// score descending, then earliest arrival at that score, then userId.
func rankEntries(participants []domain.Participant, answers []domain.Answer) []domain.LeaderboardEntry {
	type standing struct {
		score     int
		reachedAt time.Time
	}
	standings := make(map[string]*standing, len(participants))
	for _, p := range participants {
		standings[p.UserID] = &standing{reachedAt: p.JoinedAt}
	}
	byUser := make(map[string][]domain.Answer)
	for _, a := range answers {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}
	for userID, userAnswers := range byUser {
		st, ok := standings[userID]
		if !ok {
			st = &standing{}
			standings[userID] = st
		}
		sort.Slice(userAnswers, func(i, j int) bool {
			return userAnswers[i].SubmittedAt.Before(userAnswers[j].SubmittedAt)
		})
		for _, a := range userAnswers {
			if a.AwardedPoints > 0 {
				st.score += a.AwardedPoints
				st.reachedAt = a.SubmittedAt
			}
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(standings))
	order := make(map[string]time.Time, len(standings))
	for userID, st := range standings {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Score: st.score})
		order[userID] = st.reachedAt
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti, tj := order[entries[i].UserID], order[entries[j].UserID]
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

func page(entries []domain.LeaderboardEntry, limit, offset int) []domain.LeaderboardEntry {
	if offset >= len(entries) {
		return []domain.LeaderboardEntry{}
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}
