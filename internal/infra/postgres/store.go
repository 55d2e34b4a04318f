package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contest-engine/internal/domain"
)

// Store backs the contest store, the answer ledger and the final leaderboard
// with Postgres. Submission uniqueness rides on the answers primary key
// (contest_id, question_id, user_id); finalization on a conditional update of
// finalized_at. Both make the concurrent races single-winner at the database.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	var c domain.Contest
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, start_time, end_time, finalized_at, created_by, created_at, updated_at
		FROM contests WHERE id=$1`, contestID).
		Scan(&c.ID, &c.Title, &c.Description, &c.StartTime, &c.EndTime, &c.FinalizedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, fmt.Errorf("get contest: %w", err)
	}
	return c, nil
}

func (s *Store) ListContests(ctx context.Context) ([]domain.Contest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, start_time, end_time, finalized_at, created_by, created_at, updated_at
		FROM contests ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	defer rows.Close()

	var out []domain.Contest
	for rows.Next() {
		var c domain.Contest
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.StartTime, &c.EndTime, &c.FinalizedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateContest(ctx context.Context, c domain.Contest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contests (id, title, description, start_time, end_time, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Title, c.Description, c.StartTime, c.EndTime, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create contest: %w", err)
	}
	return nil
}

func (s *Store) UpdateContest(ctx context.Context, c domain.Contest) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contests SET title=$2, description=$3, start_time=$4, end_time=$5, updated_at=$6
		WHERE id=$1`,
		c.ID, c.Title, c.Description, c.StartTime, c.EndTime, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

func (s *Store) ClaimFinalize(ctx context.Context, contestID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contests SET finalized_at=$2, updated_at=$2
		WHERE id=$1 AND finalized_at IS NULL`, contestID, at)
	if err != nil {
		return false, fmt.Errorf("claim finalize: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contest_id, ord, title, description, is_multiple, points, max_time_seconds, created_by
		FROM questions WHERE contest_id=$1 ORDER BY ord`, contestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.ContestID, &q.Order, &q.Title, &q.Description, &q.IsMultiple, &q.Points, &q.MaxTimeSeconds, &q.CreatedBy); err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	choiceRows, err := s.pool.Query(ctx, `
		SELECT c.id, c.question_id, c.value, c.is_correct
		FROM choices c JOIN questions q ON q.id = c.question_id
		WHERE q.contest_id=$1 ORDER BY c.position`, contestID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer choiceRows.Close()
	for choiceRows.Next() {
		var choice domain.Choice
		var questionID string
		if err := choiceRows.Scan(&choice.ID, &questionID, &choice.Value, &choice.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[questionID]; ok {
			questions[i].Choices = append(questions[i].Choices, choice)
		}
	}
	return questions, choiceRows.Err()
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := s.pool.QueryRow(ctx, `
		SELECT id, contest_id, ord, title, description, is_multiple, points, max_time_seconds, created_by
		FROM questions WHERE id=$1`, questionID).
		Scan(&q.ID, &q.ContestID, &q.Order, &q.Title, &q.Description, &q.IsMultiple, &q.Points, &q.MaxTimeSeconds, &q.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, value, is_correct FROM choices WHERE question_id=$1 ORDER BY position`, questionID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("get choices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Choice
		if err := rows.Scan(&c.ID, &c.Value, &c.IsCorrect); err != nil {
			return domain.Question{}, err
		}
		q.Choices = append(q.Choices, c)
	}
	return q, rows.Err()
}

func (s *Store) AddQuestion(ctx context.Context, q domain.Question) error {
	return s.writeQuestion(ctx, q, false)
}

func (s *Store) UpdateQuestion(ctx context.Context, q domain.Question) error {
	return s.writeQuestion(ctx, q, true)
}

// writeQuestion replaces a question and its choices in one transaction so a
// reader never sees a question with a partial choice set.
func (s *Store) writeQuestion(ctx context.Context, q domain.Question, replace bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if replace {
		tag, err := tx.Exec(ctx, `
			UPDATE questions SET title=$2, description=$3, is_multiple=$4, points=$5, max_time_seconds=$6
			WHERE id=$1`, q.ID, q.Title, q.Description, q.IsMultiple, q.Points, q.MaxTimeSeconds)
		if err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrQuestionNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM choices WHERE question_id=$1`, q.ID); err != nil {
			return err
		}
	} else {
		_, err := tx.Exec(ctx, `
			INSERT INTO questions (id, contest_id, ord, title, description, is_multiple, points, max_time_seconds, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			q.ID, q.ContestID, q.Order, q.Title, q.Description, q.IsMultiple, q.Points, q.MaxTimeSeconds, q.CreatedBy)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	for i, c := range q.Choices {
		if _, err := tx.Exec(ctx, `
			INSERT INTO choices (id, question_id, value, is_correct, position)
			VALUES ($1,$2,$3,$4,$5)`, c.ID, q.ID, c.Value, c.IsCorrect, i); err != nil {
			return fmt.Errorf("insert choice: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, questionID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) JoinParticipant(ctx context.Context, p domain.Participant) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO participants (contest_id, user_id, joined_at)
		VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, p.ContestID, p.UserID, p.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("join participant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) IsParticipant(ctx context.Context, contestID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM participants WHERE contest_id=$1 AND user_id=$2)`,
		contestID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is participant: %w", err)
	}
	return exists, nil
}

func (s *Store) Participants(ctx context.Context, contestID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contest_id, user_id, joined_at FROM participants WHERE contest_id=$1`, contestID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ContestID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertAnswer(ctx context.Context, a domain.Answer) error {
	choiceIDs, err := json.Marshal(a.ChoiceIDs)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO answers (contest_id, question_id, user_id, choice_ids, time_taken_seconds, awarded_points, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT DO NOTHING`,
		a.ContestID, a.QuestionID, a.UserID, choiceIDs, a.TimeTakenSeconds, a.AwardedPoints, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyAnswered
	}
	return nil
}

func (s *Store) GetAnswer(ctx context.Context, contestID, questionID, userID string) (domain.Answer, bool, error) {
	a, err := scanAnswer(s.pool.QueryRow(ctx, `
		SELECT contest_id, question_id, user_id, choice_ids, time_taken_seconds, awarded_points, submitted_at
		FROM answers WHERE contest_id=$1 AND question_id=$2 AND user_id=$3`,
		contestID, questionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("get answer: %w", err)
	}
	return a, true, nil
}

func (s *Store) UserAnswers(ctx context.Context, contestID, userID string) ([]domain.Answer, error) {
	return s.queryAnswers(ctx, `
		SELECT contest_id, question_id, user_id, choice_ids, time_taken_seconds, awarded_points, submitted_at
		FROM answers WHERE contest_id=$1 AND user_id=$2 ORDER BY submitted_at`, contestID, userID)
}

func (s *Store) ContestAnswers(ctx context.Context, contestID string) ([]domain.Answer, error) {
	return s.queryAnswers(ctx, `
		SELECT contest_id, question_id, user_id, choice_ids, time_taken_seconds, awarded_points, submitted_at
		FROM answers WHERE contest_id=$1 ORDER BY submitted_at`, contestID)
}

func (s *Store) queryAnswers(ctx context.Context, query string, args ...interface{}) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()
	var out []domain.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnswer(row rowScanner) (domain.Answer, error) {
	var a domain.Answer
	var choiceIDs []byte
	if err := row.Scan(&a.ContestID, &a.QuestionID, &a.UserID, &choiceIDs, &a.TimeTakenSeconds, &a.AwardedPoints, &a.SubmittedAt); err != nil {
		return domain.Answer{}, err
	}
	if err := json.Unmarshal(choiceIDs, &a.ChoiceIDs); err != nil {
		return domain.Answer{}, err
	}
	return a, nil
}

func (s *Store) SaveFinal(ctx context.Context, contestID string, entries []domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO leaderboard_finals (contest_id, entries, finalized_at)
		VALUES ($1,$2,now()) ON CONFLICT (contest_id) DO NOTHING`, contestID, raw)
	if err != nil {
		return fmt.Errorf("save final leaderboard: %w", err)
	}
	return nil
}

func (s *Store) GetFinal(ctx context.Context, contestID string) ([]domain.LeaderboardEntry, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT entries FROM leaderboard_finals WHERE contest_id=$1`, contestID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get final leaderboard: %w", err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}
