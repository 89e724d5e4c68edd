package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_RejectsAboveBurst(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/services/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1000"))
	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("192.0.2.1:1002"))
	assert.Equal(t, http.StatusNoContent, call("192.0.2.2:1000"))
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	// GIVEN: Two clients seen at the same moment
	// WHEN: Only one of them returns after the idle TTL
	// THEN: The other client's bucket is dropped

	l := NewRateLimiter(10, 10)
	now := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.limiter("192.0.2.1")
	l.limiter("192.0.2.2")
	assert.Len(t, l.clients, 2)

	now = now.Add(limiterTTL / 2)
	l.limiter("192.0.2.2")
	assert.Len(t, l.clients, 2)

	now = now.Add(limiterTTL/2 + time.Second)
	l.limiter("192.0.2.2")
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "192.0.2.2")
}
