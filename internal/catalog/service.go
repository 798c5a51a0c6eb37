package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/generator"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

var (
	// ErrGeneratorDisabled is returned by GenerateSet when no generator is wired.
	ErrGeneratorDisabled = errors.New("question generator is not configured")
	// ErrGenerationFailed wraps model and parse failures from GenerateSet.
	ErrGenerationFailed = errors.New("question generation failed")
)

type Service struct {
	db        *database.DB
	store     *Store
	generator *generator.Generator
	log       *logger.Logger
	now       func() time.Time
}

func NewService(db *database.DB, gen *generator.Generator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		db:        db,
		store:     NewStore(db),
		generator: gen,
		log:       log.With("component", "catalog"),
		now:       time.Now,
	}
}

func requireAdmin(caller models.Caller) error {
	if !caller.Authenticated() {
		return apperr.ErrUnauthorized
	}
	if !caller.IsAdmin {
		return apperr.ErrAdminRequired
	}
	return nil
}

// ── Subjects & Topics ───────────────────────────────────

func (s *Service) CreateSubject(ctx context.Context, caller models.Caller, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	sub := &models.Subject{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UnixMilli()}
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.store.InsertSubject(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subject created", "subject_id", sub.ID, "name", sub.Name)
	return sub, nil
}

func (s *Service) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	return s.store.ListSubjects(ctx)
}

func (s *Service) CreateTopic(ctx context.Context, caller models.Caller, req models.CreateTopicRequest) (*models.Topic, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	var problems []string
	if strings.TrimSpace(req.SubjectID) == "" {
		problems = append(problems, "subject_id is required")
	}
	if name == "" {
		problems = append(problems, "name is required")
	}
	if len(problems) > 0 {
		return nil, apperr.Validation(problems...)
	}

	topic := &models.Topic{ID: uuid.NewString(), SubjectID: req.SubjectID, Name: name, CreatedAt: s.now().UnixMilli()}
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.store.GetSubject(ctx, tx, req.SubjectID); err != nil {
			return err
		}
		return s.store.InsertTopic(ctx, tx, topic)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("topic created", "topic_id", topic.ID, "subject_id", topic.SubjectID, "name", topic.Name)
	return topic, nil
}

// ListTopics returns the topics of one subject. An empty subject id yields
// an empty list.
func (s *Service) ListTopics(ctx context.Context, subjectID string) ([]models.Topic, error) {
	if strings.TrimSpace(subjectID) == "" {
		return []models.Topic{}, nil
	}
	return s.store.ListTopics(ctx, subjectID)
}

// ── Set Segmenter ───────────────────────────────────────

// UploadQuestions appends a batch to a topic. Questions fill the current
// partial set first and then open new sets; the topic's totalSets is updated
// in the same transaction. The batch is validated up front and written
// all-or-nothing.
func (s *Service) UploadQuestions(ctx context.Context, caller models.Caller, topicID string, inputs []models.QuestionInput) (*models.UploadResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := ValidateQuestions(inputs); err != nil {
		return nil, err
	}

	var result models.UploadResult
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.store.GetTopic(ctx, tx, topicID); err != nil {
			return err
		}

		existing, err := s.store.CountQuestions(ctx, tx, topicID)
		if err != nil {
			return err
		}

		now := s.now().UnixMilli()
		sets := AssignSets(existing, len(inputs))
		questions := make([]models.Question, len(inputs))
		for i, in := range inputs {
			questions[i] = models.Question{
				ID:            uuid.NewString(),
				TopicID:       topicID,
				Set:           sets[i],
				Position:      int64(existing + i),
				Text:          in.Text,
				Options:       models.Options(in.Options),
				CorrectOption: in.CorrectOption,
				Explanation:   in.Explanation,
				CreatedAt:     now,
			}
		}
		if err := s.store.InsertQuestions(ctx, tx, questions); err != nil {
			return err
		}

		total := existing + len(inputs)
		if err := s.store.SetTotalSets(ctx, tx, topicID, TotalSets(total)); err != nil {
			return err
		}

		result = models.UploadResult{
			InsertedCount: len(inputs),
			NewTotalSets:  TotalSets(total),
			TotalCount:    total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("questions uploaded",
		"topic_id", topicID,
		"inserted", result.InsertedCount,
		"total", result.TotalCount,
		"total_sets", result.NewTotalSets,
	)
	return &result, nil
}

// ImportSpreadsheet reads an xlsx workbook and uploads its questions.
func (s *Service) ImportSpreadsheet(ctx context.Context, caller models.Caller, topicID string, r io.Reader) (*models.UploadResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	questions, err := ParseSpreadsheet(r)
	if err != nil {
		return nil, err
	}
	return s.UploadQuestions(ctx, caller, topicID, questions)
}

// GenerateSet has the configured model write one set's worth of questions
// for the topic and uploads them. The model call runs outside any
// transaction.
func (s *Service) GenerateSet(ctx context.Context, caller models.Caller, topicID string) (*models.UploadResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, ErrGeneratorDisabled
	}

	topic, err := s.store.GetTopic(ctx, s.db, topicID)
	if err != nil {
		return nil, err
	}
	subject, err := s.store.GetSubject(ctx, s.db, topic.SubjectID)
	if err != nil {
		return nil, err
	}

	questions, _, err := s.generator.GenerateSet(ctx, subject.Name, topic.Name)
	if err != nil {
		s.log.Error("generation failed", "topic_id", topicID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return s.UploadQuestions(ctx, caller, topicID, questions)
}
