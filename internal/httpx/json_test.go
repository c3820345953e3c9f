package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "nope")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "nope", body["message"])
	assert.Equal(t, "nope", body["error"])
}

func TestWriteJSONAddsSessionExpiry(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(SessionExpiresHeader, "2026-01-01T00:00:00Z")
	WriteJSON(rec, http.StatusOK, map[string]any{"success": true})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-01-01T00:00:00Z", body["session_expires_at"])
}

func TestReadJSON(t *testing.T) {
	var dst struct{ Prompt string }

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, ReadJSON(r, &dst))
	assert.Equal(t, "hi", dst.Prompt)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.Error(t, ReadJSON(r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, ReadJSON(r, &dst))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", tt.header)
		assert.Equal(t, tt.want, BearerToken(r), tt.header)
	}
}
