package quiz

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/middleware"
	"github.com/quizsets/backend/internal/models"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log.With("component", "quiz_handler")}
}

// Register mounts the quiz routes on an authenticated subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/quiz/dashboard", h.GetDashboard).Methods("GET")
	r.HandleFunc("/quiz/topics/{topicID}/sets/{set}/questions", h.GetQuestions).Methods("GET")
	r.HandleFunc("/quiz/attempts", h.SubmitAttempt).Methods("POST")
	r.HandleFunc("/quiz/attempts/{attemptID}", h.GetAttempt).Methods("GET")
	r.HandleFunc("/quiz/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/quiz/stats", h.GetStats).Methods("GET")
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitAttempt(r.Context(), middleware.CallerFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, "submit attempt", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	set, err := strconv.Atoi(vars["set"])
	if err != nil || set < 1 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid set number"})
		return
	}

	questions, err := h.service.GetQuestions(r.Context(), vars["topicID"], set)
	if err != nil {
		h.writeError(w, "get questions", err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetDashboard(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		h.writeError(w, "get dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.GetAttempt(r.Context(), middleware.CallerFrom(r.Context()), mux.Vars(r)["attemptID"])
	if err != nil {
		h.writeError(w, "get attempt", err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r.URL.Query(), "limit", DefaultHistoryLimit)

	history, err := h.service.GetUserHistory(r.Context(), middleware.CallerFrom(r.Context()), limit)
	if err != nil {
		h.writeError(w, "get history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetStats answers null before the user's first scored attempt.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetUserStats(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		h.writeError(w, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		h.log.Error(op+" failed", "error", err)
		msg = "Internal server error"
	case errors.Is(err, apperr.ErrTransactionConflict):
		h.log.Warn(op+" gave up on conflicts", "error", err)
		msg = "Too many concurrent updates, please retry"
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
