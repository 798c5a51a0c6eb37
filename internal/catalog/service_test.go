package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/database/dbtest"
	"github.com/quizsets/backend/internal/generator"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

var (
	admin = models.Caller{UserID: "admin-1", IsAdmin: true}
	user  = models.Caller{UserID: "user-1"}
)

func makeQuestions(n int, prefix string) []models.QuestionInput {
	qs := make([]models.QuestionInput, n)
	for i := range qs {
		qs[i] = models.QuestionInput{
			Text:          fmt.Sprintf("%s %d", prefix, i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
		}
	}
	return qs
}

func newTestService(t *testing.T, gen *generator.Generator) (*Service, *database.DB) {
	t.Helper()
	db := dbtest.New(t)
	return NewService(db, gen, logger.Nop()), db
}

func seedTopic(t *testing.T, svc *Service) *models.Topic {
	t.Helper()
	ctx := context.Background()
	sub, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "Biology"})
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	topic, err := svc.CreateTopic(ctx, admin, models.CreateTopicRequest{SubjectID: sub.ID, Name: "Cells"})
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic
}

// setCounts returns how many questions each set of the topic holds.
func setCounts(t *testing.T, db *database.DB, topicID string) map[int]int {
	t.Helper()
	var rows []struct {
		Set   int `db:"set_number"`
		Count int `db:"n"`
	}
	err := db.Select(&rows, db.Rebind(
		`SELECT set_number, COUNT(*) AS n FROM questions WHERE topic_id = ? GROUP BY set_number`), topicID)
	if err != nil {
		t.Fatal(err)
	}
	out := map[int]int{}
	for _, r := range rows {
		out[r.Set] = r.Count
	}
	return out
}

func topicTotalSets(t *testing.T, db *database.DB, topicID string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, db.Rebind(`SELECT total_sets FROM topics WHERE id = ?`), topicID); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestUploadQuestions_Segmentation(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	res, err := svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(45, "first"))
	if err != nil {
		t.Fatal(err)
	}
	if res.InsertedCount != 45 || res.NewTotalSets != 3 || res.TotalCount != 45 {
		t.Errorf("first upload result = %+v", res)
	}
	if got := setCounts(t, db, topic.ID); got[1] != 20 || got[2] != 20 || got[3] != 5 {
		t.Errorf("after 45: set sizes = %v", got)
	}

	res, err = svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(5, "second"))
	if err != nil {
		t.Fatal(err)
	}
	if res.NewTotalSets != 3 {
		t.Errorf("after +5: totalSets = %d, want 3", res.NewTotalSets)
	}
	if got := setCounts(t, db, topic.ID); got[3] != 10 {
		t.Errorf("after +5: set 3 holds %d, want 10", got[3])
	}

	res, err = svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(15, "third"))
	if err != nil {
		t.Fatal(err)
	}
	if res.NewTotalSets != 4 || res.TotalCount != 65 {
		t.Errorf("after +15: result = %+v", res)
	}
	if got := setCounts(t, db, topic.ID); got[3] != 20 || got[4] != 5 {
		t.Errorf("after +15: set sizes = %v", got)
	}
	if got := topicTotalSets(t, db, topic.ID); got != 4 {
		t.Errorf("stored totalSets = %d, want 4", got)
	}
}

func TestUploadQuestions_PreservesOrderWithinSets(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	if _, err := svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(18, "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(4, "b")); err != nil {
		t.Fatal(err)
	}

	var texts []string
	err := db.Select(&texts, db.Rebind(
		`SELECT text FROM questions WHERE topic_id = ? AND set_number = 1 ORDER BY position`), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 20 || texts[17] != "a 17" || texts[18] != "b 0" || texts[19] != "b 1" {
		t.Errorf("set 1 texts = %v", texts)
	}
}

func TestUploadQuestions_DuplicateBatchAppendsAgain(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	batch := makeQuestions(20, "same")
	if _, err := svc.UploadQuestions(ctx, admin, topic.ID, batch); err != nil {
		t.Fatal(err)
	}
	res, err := svc.UploadQuestions(ctx, admin, topic.ID, batch)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalCount != 40 || res.NewTotalSets != 2 {
		t.Errorf("replayed upload result = %+v, want 40 questions in 2 sets", res)
	}
}

func TestUploadQuestions_InvalidBatchWritesNothing(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	batch := makeQuestions(10, "ok")
	batch[7].CorrectOption = 9

	_, err := svc.UploadQuestions(ctx, admin, topic.ID, batch)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := setCounts(t, db, topic.ID); len(got) != 0 {
		t.Errorf("questions written despite invalid batch: %v", got)
	}
	if got := topicTotalSets(t, db, topic.ID); got != 0 {
		t.Errorf("totalSets = %d, want 0", got)
	}
}

func TestUploadQuestions_Errors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	tests := []struct {
		name    string
		caller  models.Caller
		topicID string
		want    error
	}{
		{"anonymous", models.Caller{}, topic.ID, apperr.ErrUnauthorized},
		{"not admin", user, topic.ID, apperr.ErrAdminRequired},
		{"unknown topic", admin, "missing", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadQuestions(ctx, tt.caller, tt.topicID, makeQuestions(1, "q"))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUploadQuestions_ConcurrentUploadsStayDense(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.UploadQuestions(ctx, admin, topic.ID, makeQuestions(7, fmt.Sprintf("w%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upload: %v", err)
		}
	}

	if got := setCounts(t, db, topic.ID); got[1] != 20 || got[2] != 8 {
		t.Errorf("set sizes = %v, want 20 and 8", got)
	}
	if got := topicTotalSets(t, db, topic.ID); got != 2 {
		t.Errorf("totalSets = %d, want 2", got)
	}
}

func TestCreateSubject(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "Math"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "Math"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate err = %v, want conflict", err)
	}
	if _, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "   "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank err = %v, want validation", err)
	}
	if _, err := svc.CreateSubject(ctx, user, models.CreateSubjectRequest{Name: "Art"}); !errors.Is(err, apperr.ErrAdminRequired) {
		t.Errorf("non-admin err = %v, want admin required", err)
	}

	subjects, err := svc.ListSubjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subjects) != 1 || subjects[0].Name != "Math" {
		t.Errorf("subjects = %+v", subjects)
	}
}

func TestCreateTopic(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	math, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "Math"})
	if err != nil {
		t.Fatal(err)
	}
	physics, err := svc.CreateSubject(ctx, admin, models.CreateSubjectRequest{Name: "Physics"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CreateTopic(ctx, admin, models.CreateTopicRequest{SubjectID: math.ID, Name: "Algebra"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateTopic(ctx, admin, models.CreateTopicRequest{SubjectID: math.ID, Name: "Algebra"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate in subject err = %v, want conflict", err)
	}
	if _, err := svc.CreateTopic(ctx, admin, models.CreateTopicRequest{SubjectID: physics.ID, Name: "Algebra"}); err != nil {
		t.Errorf("same name in another subject: %v", err)
	}
	if _, err := svc.CreateTopic(ctx, admin, models.CreateTopicRequest{SubjectID: "missing", Name: "X"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown subject err = %v, want not found", err)
	}

	topics, err := svc.ListTopics(ctx, math.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].TotalSets != 0 {
		t.Errorf("math topics = %+v", topics)
	}

	empty, err := svc.ListTopics(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListTopics(\"\") = %v, want empty slice", empty)
	}
}

type fixedLLM struct{ content string }

func (f fixedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (*generator.LLMResponse, error) {
	return &generator.LLMResponse{Content: f.content}, nil
}

func TestGenerateSet(t *testing.T) {
	gen := generator.New(generator.NewMockClient(), "mock", nil)
	svc, db := newTestService(t, gen)
	ctx := context.Background()
	topic := seedTopic(t, svc)

	res, err := svc.GenerateSet(ctx, admin, topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.InsertedCount != models.QuestionsPerSet || res.NewTotalSets != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := setCounts(t, db, topic.ID); got[1] != 20 {
		t.Errorf("set sizes = %v", got)
	}
}

func TestGenerateSet_Errors(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t, nil)
	topic := seedTopic(t, svc)
	if _, err := svc.GenerateSet(ctx, admin, topic.ID); !errors.Is(err, ErrGeneratorDisabled) {
		t.Errorf("err = %v, want generator disabled", err)
	}

	svc, _ = newTestService(t, generator.New(fixedLLM{content: "I cannot help with that."}, "stub", nil))
	topic = seedTopic(t, svc)
	if _, err := svc.GenerateSet(ctx, admin, topic.ID); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("err = %v, want generation failed", err)
	}

	// Model output that parses but breaks the option rules is rejected whole.
	svc, db := newTestService(t, generator.New(fixedLLM{content: `[{"text":"q","options":["only"],"correctOption":0}]`}, "stub", nil))
	topic = seedTopic(t, svc)
	if _, err := svc.GenerateSet(ctx, admin, topic.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	if got := setCounts(t, db, topic.ID); len(got) != 0 {
		t.Errorf("questions written: %v", got)
	}

	if _, err := svc.GenerateSet(ctx, admin, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown topic err = %v, want not found", err)
	}
}
