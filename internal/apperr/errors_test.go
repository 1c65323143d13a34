package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Younus004/wisdom/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", apperr.Invalid("mobile", "must be 10 digits"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("register: %w", apperr.Invalid("name", "required")), http.StatusBadRequest},
		{"overpayment", fmt.Errorf("student 0001: %w", apperr.ErrOverpayment), http.StatusUnprocessableEntity},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"conflict", apperr.ErrConflict, http.StatusConflict},
		{"contention", apperr.ErrContentionExceeded, http.StatusServiceUnavailable},
		{"unavailable", fmt.Errorf("%w: dial tcp", apperr.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unauthorized", apperr.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := apperr.NewValidationError(
		apperr.FieldError{Field: "mother_mobile", Message: "must be 10 digits"},
		apperr.FieldError{Field: "father_mobile", Message: "must be 10 digits"},
	)

	assert.Equal(t, "validation failed: father_mobile: must be 10 digits; mother_mobile: must be 10 digits", err.Error())
	assert.True(t, apperr.IsValidation(err))
	assert.False(t, apperr.IsValidation(apperr.ErrNotFound))
}
