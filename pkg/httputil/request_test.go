package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"name": "test"}`))
		w := httptest.NewRecorder()
		var dest map[string]string

		ok := ParseJSONOrError(w, req, &dest)

		assert.True(t, ok)
		assert.Equal(t, "test", dest["name"])
	})

	t.Run("invalid body writes 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{invalid}`))
		w := httptest.NewRecorder()
		var dest map[string]string

		ok := ParseJSONOrError(w, req, &dest)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func requestWithVars(vars map[string]string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	return mux.SetURLVars(req, vars)
}

func TestParsePathInt64(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		req := requestWithVars(map[string]string{"id": "42"})

		val, err := ParsePathInt64(req, "id")

		assert.NoError(t, err)
		assert.Equal(t, int64(42), val)
	})

	t.Run("missing parameter", func(t *testing.T) {
		req := requestWithVars(map[string]string{})

		_, err := ParsePathInt64(req, "id")

		assert.Error(t, err)
	})

	t.Run("not an integer", func(t *testing.T) {
		req := requestWithVars(map[string]string{"id": "abc"})

		_, err := ParsePathInt64(req, "id")

		assert.Error(t, err)
	})
}

func TestParsePathInt64OrError(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		req := requestWithVars(map[string]string{"id": "7"})
		w := httptest.NewRecorder()

		val, ok := ParsePathInt64OrError(w, req, "id")

		assert.True(t, ok)
		assert.Equal(t, int64(7), val)
	})

	t.Run("invalid value writes 400", func(t *testing.T) {
		req := requestWithVars(map[string]string{"id": "abc"})
		w := httptest.NewRecorder()

		_, ok := ParsePathInt64OrError(w, req, "id")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParsePathString(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		req := requestWithVars(map[string]string{"code": "EDIT_DOC"})

		val, err := ParsePathString(req, "code")

		assert.NoError(t, err)
		assert.Equal(t, "EDIT_DOC", val)
	})

	t.Run("missing parameter", func(t *testing.T) {
		req := requestWithVars(map[string]string{})

		_, err := ParsePathString(req, "code")

		assert.Error(t, err)
	})
}

func TestParsePathStringOrError(t *testing.T) {
	t.Run("missing parameter writes 400", func(t *testing.T) {
		req := requestWithVars(map[string]string{})
		w := httptest.NewRecorder()

		_, ok := ParsePathStringOrError(w, req, "code")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
