package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/middleware"
	"github.com/quizsets/backend/internal/models"
)

// maxImportBytes caps spreadsheet uploads.
const maxImportBytes = 10 << 20

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log.With("component", "catalog_handler")}
}

// Register mounts the read routes on r and the write routes on admin, which
// is expected to sit behind middleware.RequireAdmin.
func (h *Handler) Register(r, admin *mux.Router) {
	r.HandleFunc("/subjects", h.ListSubjects).Methods("GET")
	r.HandleFunc("/subjects/{subjectID}/topics", h.ListTopics).Methods("GET")

	admin.HandleFunc("/subjects", h.CreateSubject).Methods("POST")
	admin.HandleFunc("/topics", h.CreateTopic).Methods("POST")
	admin.HandleFunc("/topics/{topicID}/questions", h.UploadQuestions).Methods("POST")
	admin.HandleFunc("/topics/{topicID}/questions/import", h.ImportSpreadsheet).Methods("POST")
	admin.HandleFunc("/topics/{topicID}/generate", h.GenerateSet).Methods("POST")
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		h.writeError(w, "list subjects", err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.ListTopics(r.Context(), mux.Vars(r)["subjectID"])
	if err != nil {
		h.writeError(w, "list topics", err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	subject, err := h.service.CreateSubject(r.Context(), middleware.CallerFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, "create subject", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.IDResponse{ID: subject.ID})
}

func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	topic, err := h.service.CreateTopic(r.Context(), middleware.CallerFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, "create topic", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.IDResponse{ID: topic.ID})
}

// UploadQuestions takes a JSON array of questions. Any other JSON shape is
// rejected before the service sees it.
func (h *Handler) UploadQuestions(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Request body must be a JSON array of questions"})
		return
	}
	var questions []models.QuestionInput
	if err := json.Unmarshal(raw, &questions); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question format: " + err.Error()})
		return
	}

	result, err := h.service.UploadQuestions(r.Context(), middleware.CallerFrom(r.Context()), mux.Vars(r)["topicID"], questions)
	if err != nil {
		h.writeError(w, "upload questions", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ImportSpreadsheet accepts either a multipart form with a "file" field or
// the raw xlsx bytes as the request body.
func (h *Handler) ImportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var body io.Reader = r.Body
	if err := r.ParseMultipartForm(maxImportBytes); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Multipart upload needs a \"file\" field"})
			return
		}
		defer file.Close()
		body = file
	} else if !errors.Is(err, http.ErrNotMultipart) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid upload: " + err.Error()})
		return
	}

	result, err := h.service.ImportSpreadsheet(r.Context(), middleware.CallerFrom(r.Context()), mux.Vars(r)["topicID"], body)
	if err != nil {
		h.writeError(w, "import spreadsheet", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) GenerateSet(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateSet(r.Context(), middleware.CallerFrom(r.Context()), mux.Vars(r)["topicID"])
	switch {
	case errors.Is(err, ErrGeneratorDisabled):
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "Question generation is not configured"})
		return
	case errors.Is(err, ErrGenerationFailed):
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.writeError(w, "generate set", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
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
