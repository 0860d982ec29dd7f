package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowExactlyNThenRejects(t *testing.T) {
	l := New(10, time.Minute)
	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("client-a")
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}
	allowed, retryAfter := l.Allow("client-a")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestWindowResetsAfterElapsing(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	allowed, _ := l.Allow("client-b")
	assert.True(t, allowed)

	allowed, _ = l.Allow("client-b")
	assert.False(t, allowed)

	time.Sleep(20 * time.Millisecond)
	allowed, _ = l.Allow("client-b")
	assert.True(t, allowed, "first request after window roll must be accepted")
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/parse", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "9.9.9.9")
	req.RemoteAddr = "10.0.0.1:443"
	assert.Equal(t, "1.2.3.4", ClientKey(req))
}

func TestClientKeyFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/parse", nil)
	req.RemoteAddr = "10.0.0.1:443"
	assert.Equal(t, "10.0.0.1:443", ClientKey(req))
}
