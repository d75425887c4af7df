package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/logger"
)

func newTestMiddleware() *Middleware {
	return New(nil, logger.New("error", "text"), &config.Config{})
}

func TestTimingProvidesStartTime(t *testing.T) {
	m := newTestMiddleware()

	var got time.Time
	h := m.Timing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetStartTime(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.False(t, got.IsZero())
	assert.WithinDuration(t, time.Now(), got, time.Second)
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	m := newTestMiddleware()

	var got string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, got)
	assert.Equal(t, got, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	m := newTestMiddleware()

	var got string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-abc", got)
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	m := newTestMiddleware()

	h := m.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
