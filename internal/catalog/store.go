package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/models"
)

// insertChunk bounds the rows per multi-row INSERT so large uploads stay
// under the driver's bind parameter limit.
const insertChunk = 500

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// ── Subjects ────────────────────────────────────────────

func (s *Store) InsertSubject(ctx context.Context, tx *sqlx.Tx, sub *models.Subject) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO subjects (id, name, created_at) VALUES (?, ?, ?)`),
		sub.ID, sub.Name, sub.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("subject")
	}
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	if err := s.db.SelectContext(ctx, &subjects, `SELECT id, name, created_at FROM subjects ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

func (s *Store) GetSubject(ctx context.Context, q queryer, id string) (*models.Subject, error) {
	var sub models.Subject
	err := sqlx.GetContext(ctx, q, &sub, q.Rebind(`SELECT id, name, created_at FROM subjects WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("subject")
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &sub, nil
}

// ── Topics ──────────────────────────────────────────────

func (s *Store) InsertTopic(ctx context.Context, tx *sqlx.Tx, t *models.Topic) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO topics (id, subject_id, name, total_sets, created_at) VALUES (?, ?, ?, ?, ?)`),
		t.ID, t.SubjectID, t.Name, t.TotalSets, t.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("topic")
	}
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

func (s *Store) ListTopics(ctx context.Context, subjectID string) ([]models.Topic, error) {
	topics := []models.Topic{}
	err := s.db.SelectContext(ctx, &topics, s.db.Rebind(
		`SELECT id, subject_id, name, total_sets, created_at
		 FROM topics WHERE subject_id = ?
		 ORDER BY created_at, name`),
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (s *Store) GetTopic(ctx context.Context, q queryer, id string) (*models.Topic, error) {
	var t models.Topic
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(
		`SELECT id, subject_id, name, total_sets, created_at FROM topics WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("topic")
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// SetTotalSets records the set count after an upload. The guard keeps the
// value from ever moving backwards.
func (s *Store) SetTotalSets(ctx context.Context, tx *sqlx.Tx, topicID string, totalSets int) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE topics SET total_sets = ? WHERE id = ? AND total_sets <= ?`),
		totalSets, topicID, totalSets)
	if err != nil {
		return fmt.Errorf("update total sets: %w", err)
	}
	return nil
}

// ── Questions ───────────────────────────────────────────

func (s *Store) CountQuestions(ctx context.Context, tx *sqlx.Tx, topicID string) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM questions WHERE topic_id = ?`), topicID); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// InsertQuestions appends a batch. A position collision means another upload
// to the same topic committed first, so it is reported as a retryable
// conflict.
func (s *Store) InsertQuestions(ctx context.Context, tx *sqlx.Tx, questions []models.Question) error {
	const query = `INSERT INTO questions
		(id, topic_id, set_number, position, text, options, correct_option, explanation, created_at)
		VALUES (:id, :topic_id, :set_number, :position, :text, :options, :correct_option, :explanation, :created_at)`

	for start := 0; start < len(questions); start += insertChunk {
		end := start + insertChunk
		if end > len(questions) {
			end = len(questions)
		}
		_, err := tx.NamedExecContext(ctx, query, questions[start:end])
		if database.IsUniqueViolation(err) {
			return apperr.TxConflict(err)
		}
		if err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	return nil
}
