package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("user 1: %w", ErrNotFound), http.StatusNotFound},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("bad lat: %w", ErrBadRequest), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrDuplicateName, http.StatusBadRequest},
		{ErrDuplicateEmail, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusFromError(tt.err), "%v", tt.err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestRespondWithServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	RespondWithServiceError(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrInternalServer.Error(), body.Error)

	rec = httptest.NewRecorder()
	RespondWithServiceError(rec, req, fmt.Errorf("category abc: %w", ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "category abc")
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var s sample
		return DecodeJSON(httptest.NewRecorder(), req, &s)
	}

	assert.NoError(t, decode(`{"name":"a"}`))
	assert.ErrorIs(t, decode(``), ErrBadRequest)
	assert.ErrorIs(t, decode(`{"name":`), ErrBadRequest)
	assert.ErrorIs(t, decode(`{"name":"a","extra":1}`), ErrBadRequest)
	assert.ErrorIs(t, decode(`{"name":"a"}{"name":"b"}`), ErrBadRequest)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample{Name: "a"}))

	err := Validate(sample{Email: "nope"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name failed required")
	assert.Contains(t, err.Error(), "email failed email")
}
