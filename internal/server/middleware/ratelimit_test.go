package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("client-a"), "fourth request should be blocked")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	assert.True(t, rl.Allow("client-a"))
	assert.False(t, rl.Allow("client-a"))
	assert.True(t, rl.Allow("client-b"))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow("client-a"))
	assert.False(t, rl.Allow("client-a"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("client-a"), "expired entries should free the window")
}

func TestLimit_Returns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	handler := Limit(rl)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/scores/u1", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientKey_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", clientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientKey(req))
}
