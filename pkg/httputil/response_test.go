package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := errors.New("test error")

	WriteError(w, http.StatusBadRequest, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "test error")
}

func TestWriteErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorMessage(w, http.StatusNotFound, "resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "resource not found")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation error",
			write:      func(w http.ResponseWriter) { WriteValidationError(w, "name is required") },
			wantStatus: http.StatusBadRequest,
			wantBody:   "name is required",
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter) { WriteNotFoundError(w, "unknown operation") },
			wantStatus: http.StatusNotFound,
			wantBody:   "unknown operation",
		},
		{
			name:       "internal error",
			write:      func(w http.ResponseWriter) { WriteInternalError(w, errors.New("boom")) },
			wantStatus: http.StatusInternalServerError,
			wantBody:   "boom",
		},
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter) { WriteBadRequest(w, "invalid role id") },
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid role id",
		},
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter) { WriteUnauthorized(w, "authentication required") },
			wantStatus: http.StatusUnauthorized,
			wantBody:   "authentication required",
		},
		{
			name:       "conflict",
			write:      func(w http.ResponseWriter) { WriteConflict(w, "row already exists") },
			wantStatus: http.StatusConflict,
			wantBody:   "row already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccess(w, map[string]int{"count": 3})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":3`)
}

func TestWriteSuccessMessage(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccessMessage(w, "reconciled", map[string]int{"patches": 2})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
	assert.Contains(t, w.Body.String(), "reconciled")
	assert.Contains(t, w.Body.String(), `"patches":2`)
}
