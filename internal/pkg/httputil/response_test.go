package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperr.Validation(apperr.CodeSuspiciousInput, "suspicious input"), 400, "suspicious_input"},
		{"auth", apperr.Auth("missing bearer token"), 401, "unauthorized"},
		{"not found", apperr.NotFound("campaign"), 404, "not_found"},
		{"provider", apperr.Provider(errors.New("sendgrid: status 400")), 500, "provider_error"},
		{"plain error", errors.New("pq: connection refused"), 500, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error)
		})
	}
}

func TestWriteErrorHidesInternalText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), apperr.RateLimited("", "slow down", 42*time.Second))
	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

type sendReq struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var req sendReq
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"ana@example.com","subject":"Hi"}`))
		assert.True(t, Decode(rec, r, &req))
		assert.Equal(t, "ana@example.com", req.To)
	})
	t.Run("bad email", func(t *testing.T) {
		var req sendReq
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"nope","subject":"Hi"}`))
		assert.False(t, Decode(rec, r, &req))
		assert.Equal(t, 400, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec).Details, "To")
	})
	t.Run("json content types", func(t *testing.T) {
		for _, ct := range []string{"", "application/json", "Application/JSON; charset=utf-8", "application/merge-patch+json"} {
			var req sendReq
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"ana@example.com","subject":"Hi"}`))
			if ct != "" {
				r.Header.Set("Content-Type", ct)
			}
			assert.True(t, Decode(rec, r, &req), ct)
		}
	})
	t.Run("other content types", func(t *testing.T) {
		for _, ct := range []string{"text/plain", "application/x-www-form-urlencoded", "application/jsonx", ";;"} {
			var req sendReq
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"ana@example.com","subject":"Hi"}`))
			r.Header.Set("Content-Type", ct)
			assert.False(t, Decode(rec, r, &req), ct)
			assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, ct)
			assert.Equal(t, apperr.CodeUnsupportedMedia, decodeEnvelope(t, rec).Error)
		}
	})
	t.Run("unknown field", func(t *testing.T) {
		var req sendReq
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"ana@example.com","subject":"Hi","bcc":"x"}`))
		assert.False(t, Decode(rec, r, &req))
		assert.Equal(t, 400, rec.Code)
	})
}
