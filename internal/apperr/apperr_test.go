package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrAdminRequired, http.StatusForbidden},
		{NotFound("topic"), http.StatusNotFound},
		{Validation("question 1: needs at least 2 options"), http.StatusBadRequest},
		{Conflict("subject"), http.StatusConflict},
		{TxConflict(errors.New("40001")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAdminRequiredIsUnauthorized(t *testing.T) {
	if !errors.Is(ErrAdminRequired, ErrUnauthorized) {
		t.Error("ErrAdminRequired should match ErrUnauthorized")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := Validation("question 1: text is required", "question 2: correct_option out of range")
	want := "validation failed: question 1: text is required; question 2: correct_option out of range"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
}
