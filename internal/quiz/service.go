package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/cache"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

// DefaultHistoryLimit is the number of attempts returned when the caller does
// not ask for a specific count.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps a single history page.
const MaxHistoryLimit = 200

type Service struct {
	db    *database.DB
	store *Store
	stats cache.StatsCache
	log   *logger.Logger
	now   func() time.Time
}

func NewService(db *database.DB, stats cache.StatsCache, log *logger.Logger) *Service {
	if stats == nil {
		stats = cache.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		db:    db,
		store: NewStore(db),
		stats: stats,
		log:   log.With("component", "quiz"),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Tests use it to step through cooldowns.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ── Attempt Evaluator ───────────────────────────────────

// SubmitAttempt records a finished quiz run. The attempt is always logged;
// progress and stats only move when the set is out of its cooldown.
func (s *Service) SubmitAttempt(ctx context.Context, caller models.Caller, req models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	if !caller.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	var (
		resp    models.SubmitAttemptResponse
		updated *models.UserStats
	)
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		updated = nil
		// The clock is read per try so a retried transaction sees its own now.
		now := s.now()

		if err := s.store.ResolveRefs(ctx, tx, req.TopicID, req.SubjectID); err != nil {
			return err
		}

		attempt := models.Attempt{
			ID:             uuid.NewString(),
			UserID:         caller.UserID,
			TopicID:        req.TopicID,
			SubjectID:      req.SubjectID,
			Set:            req.Set,
			Score:          req.Score,
			TotalQuestions: req.TotalQuestions,
			Answers:        req.Answers,
			CompletedAt:    now.UnixMilli(),
		}
		if err := s.store.InsertAttempt(ctx, tx, &attempt); err != nil {
			return err
		}

		progress, err := s.store.GetProgress(ctx, tx, caller.UserID, req.TopicID, req.Set)
		if err != nil {
			return err
		}

		resp = models.SubmitAttemptResponse{AttemptID: attempt.ID}
		if Classify(now, progress) == Practice {
			resp.IsPractice = true
			return nil
		}

		next := NextProgress(now, progress, req.Score)
		if progress == nil {
			next.UserID, next.TopicID, next.Set = caller.UserID, req.TopicID, req.Set
			err = s.store.InsertProgress(ctx, tx, &next)
		} else {
			err = s.store.UpdateProgress(ctx, tx, &next)
		}
		if err != nil {
			return err
		}

		existing, err := s.store.GetStatsTx(ctx, tx, caller.UserID)
		if err != nil {
			return err
		}
		folded := FoldStats(now, existing, req.Score)
		if existing == nil {
			folded.UserID = caller.UserID
			err = s.store.InsertStats(ctx, tx, &folded)
		} else {
			err = s.store.UpdateStats(ctx, tx, &folded)
		}
		if err != nil {
			return err
		}
		updated = &folded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated != nil {
		s.refreshStats(ctx, updated)
	}

	s.log.Info("attempt recorded",
		"attempt_id", resp.AttemptID,
		"user_id", caller.UserID,
		"topic_id", req.TopicID,
		"set", req.Set,
		"score", req.Score,
		"practice", resp.IsPractice,
	)
	return &resp, nil
}

func validateSubmission(req models.SubmitAttemptRequest) error {
	var problems []string
	if strings.TrimSpace(req.TopicID) == "" {
		problems = append(problems, "topic_id is required")
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		problems = append(problems, "subject_id is required")
	}
	if req.Set < 1 {
		problems = append(problems, "set must be at least 1")
	}
	if len(problems) > 0 {
		return apperr.Validation(problems...)
	}
	return nil
}

// ── Read Projections ────────────────────────────────────

func (s *Service) GetQuestions(ctx context.Context, topicID string, set int) ([]models.Question, error) {
	return s.store.GetQuestions(ctx, topicID, set)
}

// GetDashboard returns the whole catalog with the caller's progress attached
// to each topic, plus the caller's stats.
func (s *Service) GetDashboard(ctx context.Context, caller models.Caller) (*models.DashboardResponse, error) {
	if !caller.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}

	var (
		subjects []models.Subject
		topics   []models.Topic
		progress []models.UserProgress
		stats    *models.UserStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subjects, err = s.store.ListSubjects(gctx)
		return err
	})
	g.Go(func() (err error) {
		topics, err = s.store.ListTopics(gctx)
		return err
	})
	g.Go(func() (err error) {
		progress, err = s.store.ListProgress(gctx, caller.UserID)
		return err
	})
	g.Go(func() (err error) {
		stats, err = s.GetUserStats(gctx, caller)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	progressByTopic := make(map[string][]models.UserProgress)
	for _, p := range progress {
		progressByTopic[p.TopicID] = append(progressByTopic[p.TopicID], p)
	}
	topicsBySubject := make(map[string][]models.DashboardTopic)
	for _, t := range topics {
		rows := progressByTopic[t.ID]
		if rows == nil {
			rows = []models.UserProgress{}
		}
		topicsBySubject[t.SubjectID] = append(topicsBySubject[t.SubjectID], models.DashboardTopic{Topic: t, UserProgress: rows})
	}

	resp := &models.DashboardResponse{Subjects: make([]models.DashboardSubject, 0, len(subjects)), Stats: stats}
	for _, sub := range subjects {
		ts := topicsBySubject[sub.ID]
		if ts == nil {
			ts = []models.DashboardTopic{}
		}
		resp.Subjects = append(resp.Subjects, models.DashboardSubject{Subject: sub, Topics: ts})
	}
	return resp, nil
}

// GetAttempt returns an attempt with the questions of its set. Only the owner
// or an admin may read it; anyone else gets NotFound.
func (s *Service) GetAttempt(ctx context.Context, caller models.Caller, attemptID string) (*models.AttemptReview, error) {
	if !caller.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != caller.UserID && !caller.IsAdmin {
		return nil, apperr.NotFound("attempt")
	}

	questions, err := s.store.GetQuestions(ctx, attempt.TopicID, attempt.Set)
	if err != nil {
		return nil, err
	}
	subjectName, topicName, err := s.store.LookupNames(ctx, attempt.SubjectID, attempt.TopicID)
	if err != nil {
		return nil, err
	}
	return &models.AttemptReview{
		Attempt:     *attempt,
		Questions:   questions,
		SubjectName: subjectName,
		TopicName:   topicName,
	}, nil
}

// refreshStats writes a committed stats row through to the cache. When the
// write fails the entry is dropped so readers fall back to the database.
func (s *Service) refreshStats(ctx context.Context, stats *models.UserStats) {
	err := s.stats.Set(ctx, stats)
	if err == nil {
		return
	}
	s.log.Warn("stats cache write failed", "user_id", stats.UserID, "error", err)
	if err := s.stats.Invalidate(ctx, stats.UserID); err != nil {
		s.log.Warn("stats cache invalidation failed", "user_id", stats.UserID, "error", err)
	}
}

// GetUserHistory returns the caller's newest attempts first. limit <= 0 uses
// DefaultHistoryLimit and larger values are clamped to MaxHistoryLimit.
func (s *Service) GetUserHistory(ctx context.Context, caller models.Caller, limit int) ([]models.HistoryEntry, error) {
	if !caller.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.store.GetUserHistory(ctx, caller.UserID, limit)
}

// GetUserStats returns the caller's stats, or nil before the first scored
// attempt. Reads go through the stats cache; cache failures fall back to the
// database.
func (s *Service) GetUserStats(ctx context.Context, caller models.Caller) (*models.UserStats, error) {
	if !caller.Authenticated() {
		return nil, apperr.ErrUnauthorized
	}

	cached, ok, err := s.stats.Get(ctx, caller.UserID)
	if err != nil {
		s.log.Warn("stats cache read failed", "user_id", caller.UserID, "error", err)
	}
	if ok {
		return cached, nil
	}

	stats, err := s.store.GetStats(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if stats != nil {
		if err := s.stats.Set(ctx, stats); err != nil {
			s.log.Warn("stats cache write failed", "user_id", caller.UserID, "error", err)
		}
	}
	return stats, nil
}
