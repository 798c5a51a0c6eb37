package quiz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/middleware"
	"github.com/quizsets/backend/internal/models"
)

func newTestRouter(t *testing.T, caller models.Caller) (http.Handler, *clock) {
	t.Helper()
	svc, _, clk, _ := newTestService(t)

	r := mux.NewRouter()
	NewHandler(svc, logger.Nop()).Register(r.PathPrefix("/api/v1").Subrouter())
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.ServeHTTP(w, req.WithContext(middleware.WithCaller(req.Context(), caller)))
	}), clk
}

func TestSubmitAttemptHandler(t *testing.T) {
	router, _ := newTestRouter(t, alice)
	body := `{"topic_id":"top-1","subject_id":"sub-1","set":1,"score":8,"total_questions":20,"answers":"{}"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quiz/attempts", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var first models.SubmitAttemptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}
	if first.AttemptID == "" || first.IsPractice {
		t.Errorf("first response = %+v", first)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quiz/attempts", strings.NewReader(body)))
	var second models.SubmitAttemptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if !second.IsPractice {
		t.Error("immediate resubmission should be practice")
	}
}

func TestSubmitAttemptHandler_Errors(t *testing.T) {
	router, _ := newTestRouter(t, alice)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing set", `{"topic_id":"top-1","subject_id":"sub-1"}`, http.StatusBadRequest},
		{"unknown topic", `{"topic_id":"x","subject_id":"sub-1","set":1}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quiz/attempts", strings.NewReader(tt.body)))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestReadHandlers(t *testing.T) {
	router, _ := newTestRouter(t, alice)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/v1/quiz/stats")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("stats before attempts = %d %s, want 200 null", rec.Code, rec.Body.String())
	}

	rec = get("/api/v1/quiz/topics/top-1/sets/1/questions")
	var questions []models.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &questions); err != nil || len(questions) != 20 {
		t.Errorf("questions = %d (%v)", len(questions), err)
	}
	if strings.Contains(rec.Body.String(), `"position"`) {
		t.Error("position should not be serialized")
	}

	if rec := get("/api/v1/quiz/topics/top-1/sets/zero/questions"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad set status = %d, want 400", rec.Code)
	}

	if rec := get("/api/v1/quiz/attempts/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("missing attempt status = %d, want 404", rec.Code)
	}

	rec = get("/api/v1/quiz/history?limit=5")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty history = %d %s", rec.Code, rec.Body.String())
	}

	rec = get("/api/v1/quiz/dashboard")
	var dash models.DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil || len(dash.Subjects) != 1 {
		t.Errorf("dashboard = %s (%v)", rec.Body.String(), err)
	}
}

func TestHandlers_RequireCaller(t *testing.T) {
	router, _ := newTestRouter(t, models.Caller{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quiz/dashboard", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
