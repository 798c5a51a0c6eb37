package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quizsets/backend/internal/models"
)

type ctxKey int

const callerKey ctxKey = iota

// TokenParser turns a bearer token into the caller it was issued to.
type TokenParser interface {
	ParseToken(token string) (models.Caller, error)
}

// WithCaller stores the authenticated caller on ctx.
func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the caller stored by Auth, or the zero Caller.
func CallerFrom(ctx context.Context) models.Caller {
	c, _ := ctx.Value(callerKey).(models.Caller)
	return c
}

// Auth rejects requests without a valid bearer token and attaches the caller
// to the request context.
func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Missing or malformed authorization header"})
				return
			}

			caller, err := tokens.ParseToken(strings.TrimSpace(token))
			if err != nil || !caller.Authenticated() {
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFrom(r.Context()).IsAdmin {
			writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "Admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
