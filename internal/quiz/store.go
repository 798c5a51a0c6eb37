package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/models"
)

// Store holds the quiz queries. Write methods take the caller's transaction;
// read methods run against the pool.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// ── Attempt Log ─────────────────────────────────────────

// ResolveRefs checks that the topic and subject of a submission exist.
func (s *Store) ResolveRefs(ctx context.Context, tx *sqlx.Tx, topicID, subjectID string) error {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM topics WHERE id = ?`), topicID); err != nil {
		return fmt.Errorf("resolve topic: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("topic")
	}
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM subjects WHERE id = ?`), subjectID); err != nil {
		return fmt.Errorf("resolve subject: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("subject")
	}
	return nil
}

func (s *Store) InsertAttempt(ctx context.Context, tx *sqlx.Tx, a *models.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO attempts (id, user_id, topic_id, subject_id, set_number, score, total_questions, answers, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.TopicID, a.SubjectID, a.Set, a.Score, a.TotalQuestions, a.Answers, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ── Progress ────────────────────────────────────────────

// GetProgress returns nil, nil when the user has never attempted the set.
func (s *Store) GetProgress(ctx context.Context, tx *sqlx.Tx, userID, topicID string, set int) (*models.UserProgress, error) {
	var p models.UserProgress
	err := tx.GetContext(ctx, &p, tx.Rebind(
		`SELECT id, user_id, topic_id, set_number, high_score, last_attempt_at, next_valid_attempt_at
		 FROM user_progress WHERE user_id = ? AND topic_id = ? AND set_number = ?`),
		userID, topicID, set,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

func (s *Store) InsertProgress(ctx context.Context, tx *sqlx.Tx, p *models.UserProgress) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO user_progress (id, user_id, topic_id, set_number, high_score, last_attempt_at, next_valid_attempt_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.UserID, p.TopicID, p.Set, p.HighScore, p.LastAttemptAt, p.NextValidAttemptAt,
	)
	if database.IsUniqueViolation(err) {
		// A concurrent first attempt created the row; retry sees it.
		return apperr.TxConflict(err)
	}
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, tx *sqlx.Tx, p *models.UserProgress) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE user_progress SET high_score = ?, last_attempt_at = ?, next_valid_attempt_at = ?
		 WHERE id = ?`),
		p.HighScore, p.LastAttemptAt, p.NextValidAttemptAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ── Stats ───────────────────────────────────────────────

func (s *Store) GetStatsTx(ctx context.Context, tx *sqlx.Tx, userID string) (*models.UserStats, error) {
	return getStats(ctx, tx, userID)
}

func (s *Store) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	return getStats(ctx, s.db, userID)
}

func getStats(ctx context.Context, q queryer, userID string) (*models.UserStats, error) {
	var st models.UserStats
	err := sqlx.GetContext(ctx, q, &st, q.Rebind(
		`SELECT id, user_id, total_xp, quizzes_taken, average_score, last_active
		 FROM user_stats WHERE user_id = ?`),
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &st, nil
}

func (s *Store) InsertStats(ctx context.Context, tx *sqlx.Tx, st *models.UserStats) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO user_stats (id, user_id, total_xp, quizzes_taken, average_score, last_active)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		st.ID, st.UserID, st.TotalXP, st.QuizzesTaken, st.AverageScore, st.LastActive,
	)
	if database.IsUniqueViolation(err) {
		return apperr.TxConflict(err)
	}
	if err != nil {
		return fmt.Errorf("insert stats: %w", err)
	}
	return nil
}

func (s *Store) UpdateStats(ctx context.Context, tx *sqlx.Tx, st *models.UserStats) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE user_stats SET total_xp = ?, quizzes_taken = ?, average_score = ?, last_active = ?
		 WHERE id = ?`),
		st.TotalXP, st.QuizzesTaken, st.AverageScore, st.LastActive, st.ID,
	)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}

// ── Read Projections ────────────────────────────────────

func (s *Store) GetQuestions(ctx context.Context, topicID string, set int) ([]models.Question, error) {
	questions := []models.Question{}
	err := s.db.SelectContext(ctx, &questions, s.db.Rebind(
		`SELECT id, topic_id, set_number, position, text, options, correct_option, explanation, created_at
		 FROM questions WHERE topic_id = ? AND set_number = ?
		 ORDER BY position`),
		topicID, set,
	)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return questions, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	if err := s.db.SelectContext(ctx, &subjects, `SELECT id, name, created_at FROM subjects ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

func (s *Store) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics := []models.Topic{}
	if err := s.db.SelectContext(ctx, &topics, `SELECT id, subject_id, name, total_sets, created_at FROM topics ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]models.UserProgress, error) {
	progress := []models.UserProgress{}
	err := s.db.SelectContext(ctx, &progress, s.db.Rebind(
		`SELECT id, user_id, topic_id, set_number, high_score, last_attempt_at, next_valid_attempt_at
		 FROM user_progress WHERE user_id = ?
		 ORDER BY topic_id, set_number`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return progress, nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	var a models.Attempt
	err := s.db.GetContext(ctx, &a, s.db.Rebind(
		`SELECT id, user_id, topic_id, subject_id, set_number, score, total_questions, answers, completed_at
		 FROM attempts WHERE id = ?`),
		attemptID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("attempt")
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return &a, nil
}

// LookupNames returns the subject and topic names, nil where the row is gone.
func (s *Store) LookupNames(ctx context.Context, subjectID, topicID string) (*string, *string, error) {
	var subjectName, topicName *string
	var name string
	err := s.db.GetContext(ctx, &name, s.db.Rebind(`SELECT name FROM subjects WHERE id = ?`), subjectID)
	switch {
	case err == nil:
		subjectName = &name
	case !errors.Is(err, sql.ErrNoRows):
		return nil, nil, fmt.Errorf("lookup subject name: %w", err)
	}
	var tname string
	err = s.db.GetContext(ctx, &tname, s.db.Rebind(`SELECT name FROM topics WHERE id = ?`), topicID)
	switch {
	case err == nil:
		topicName = &tname
	case !errors.Is(err, sql.ErrNoRows):
		return nil, nil, fmt.Errorf("lookup topic name: %w", err)
	}
	return subjectName, topicName, nil
}

func (s *Store) GetUserHistory(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	history := []models.HistoryEntry{}
	err := s.db.SelectContext(ctx, &history, s.db.Rebind(
		`SELECT a.id, a.user_id, a.topic_id, a.subject_id, a.set_number, a.score,
		        a.total_questions, a.answers, a.completed_at,
		        COALESCE(s.name, 'Unknown Subject') AS subject_name,
		        COALESCE(t.name, 'Unknown Topic') AS topic_name
		 FROM attempts a
		 LEFT JOIN subjects s ON s.id = a.subject_id
		 LEFT JOIN topics t ON t.id = a.topic_id
		 WHERE a.user_id = ?
		 ORDER BY a.completed_at DESC, a.id DESC
		 LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get user history: %w", err)
	}
	return history, nil
}
