package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/middleware"
	"github.com/quizsets/backend/internal/models"
)

type Handler struct {
	store       *Store
	tokens      *Tokens
	adminEmails map[string]bool
	log         *logger.Logger
}

func NewHandler(store *Store, tokens *Tokens, adminEmails []string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Handler{store: store, tokens: tokens, adminEmails: admins, log: log.With("component", "auth")}
}

// RegisterPublic mounts register and login; RegisterProtected mounts /auth/me
// on a router that already runs middleware.Auth.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
}

func (h *Handler) RegisterProtected(r *mux.Router) {
	r.HandleFunc("/auth/me", h.GetCurrentUser).Methods("GET")
}

const minPasswordLength = 8

var errBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	resp, err := h.register(r.Context(), req)
	if err != nil {
		h.writeError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)

	var problems []string
	if email == "" {
		problems = append(problems, "email is required")
	}
	if name == "" {
		problems = append(problems, "name is required")
	}
	if len(req.Password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(problems) > 0 {
		return nil, apperr.Validation(problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      h.roleFor(email),
		Password:  string(hash),
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := h.store.CreateUser(ctx, &user); err != nil {
		return nil, err
	}

	h.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return h.authResponse(user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	resp, err := h.login(r.Context(), req)
	if err != nil {
		h.writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := h.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, errBadCredentials
	}

	// ADMIN_EMAILS is authoritative: accounts are promoted or demoted on login.
	if role := h.roleFor(user.Email); role != user.Role {
		if err := h.store.SetRole(ctx, user.ID, role); err != nil {
			return nil, err
		}
		h.log.Info("user role changed", "user_id", user.ID, "from", user.Role, "to", role)
		user.Role = role
	}
	return h.authResponse(*user)
}

func (h *Handler) roleFor(email string) string {
	if h.adminEmails[email] {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func (h *Handler) authResponse(user models.User) (*models.AuthResponse, error) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	user, err := h.store.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, "current user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		h.log.Error(op+" failed", "error", err)
		msg = "Internal server error"
	case errors.Is(err, apperr.ErrConflict):
		msg = "An account with this email already exists"
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
