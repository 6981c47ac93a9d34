package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicRateLimiterRejectsWithRetryAfter(t *testing.T) {
	limited := PublicRateLimiter(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/quotes/tok", nil)
		req.RemoteAddr = "203.0.113.5:40000"
		limited.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/quotes/tok", nil)
	req.RemoteAddr = "203.0.113.5:40000"
	limited.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client address keeps its own budget.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/quotes/tok", nil)
	req.RemoteAddr = "198.51.100.9:40000"
	limited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
