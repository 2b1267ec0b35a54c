package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := NewClientLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refilled after a second")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestClientLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := NewClientLimiter(5, 5)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	require.Equal(t, 2, l.size())

	now = now.Add(clientIdleTTL + time.Minute)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, l.size())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewClientLimiter(0.5, 1)
	handler := RateLimitWith(limiter)(okHandler(nil))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("192.0.2.10:5000")
	assert.Equal(t, http.StatusOK, first.Code)

	second := send("192.0.2.10:5001")
	assert.Equal(t, http.StatusTooManyRequests, second.Code, "port is not part of the client key")
	assert.Equal(t, "3", second.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests"}`, second.Body.String())

	other := send("192.0.2.11:5000")
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestClientKeyWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", clientKey(req))
}
