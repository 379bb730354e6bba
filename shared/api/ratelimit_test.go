package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter_PerClient(t *testing.T) {
	l := NewIPRateLimiter(4, time.Minute) // burst 2

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	assert.True(t, l.Allow("10.0.0.2"))
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(10, time.Minute)
	clock := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/250, i%250))
	}
	assert.Len(t, l.limiters, 100)

	clock = clock.Add(30 * time.Second)
	l.Allow("10.9.9.9")
	assert.Len(t, l.limiters, 101, "no sweep before a window has passed")

	clock = clock.Add(40 * time.Second)
	l.Allow("10.9.9.9")
	assert.Len(t, l.limiters, 1, "only the client seen within the window survives")
	assert.Contains(t, l.limiters, "10.9.9.9")
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(1, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/slots/claim", nil)
	req.RemoteAddr = "198.51.100.7:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeRateLimited)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", ClientIP(req))
}
