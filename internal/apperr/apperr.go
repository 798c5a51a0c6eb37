package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAdminRequired       = fmt.Errorf("%w: admin access required", ErrUnauthorized)
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("already exists")
	ErrTransactionConflict = errors.New("transaction conflict")
)

// ValidationError carries one message per offending field so the caller can
// fix the input. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func Conflict(what string) error {
	return fmt.Errorf("%s %w", what, ErrConflict)
}

func TxConflict(err error) error {
	return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
}

// Status maps an error to the HTTP status handlers report.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransactionConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
