package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T, trusted []string, handlers ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(trusted))
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	r := newEngine(t, nil, NewRateLimiter(2).Middleware())

	assert.Equal(t, http.StatusOK, get(r, nil).Code)
	assert.Equal(t, http.StatusOK, get(r, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, nil).Code)
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	r := newEngine(t, nil, NewRateLimiter(2).Middleware())

	codes := make([]int, 0, 3)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		codes = append(codes, get(r, map[string]string{"X-Forwarded-For": ip}).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_HonoursTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1.
	r := newEngine(t, []string{"192.0.2.1"}, NewRateLimiter(1).Middleware())

	assert.Equal(t, http.StatusOK, get(r, map[string]string{"X-Forwarded-For": "10.0.0.1"}).Code)
	assert.Equal(t, http.StatusOK, get(r, map[string]string{"X-Forwarded-For": "10.0.0.2"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, map[string]string{"X-Forwarded-For": "10.0.0.1"}).Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newEngine(t, nil, NewRateLimiter(0).Middleware())
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(r, nil).Code)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(5)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.limiterFor("10.0.0.1")
	limiter.limiterFor("10.0.0.2")
	assert.Equal(t, 2, limiter.tracked())

	now = now.Add(5 * time.Minute)
	limiter.limiterFor("10.0.0.2")

	// 10.0.0.1 has been idle past the TTL, 10.0.0.2 has not.
	now = now.Add(limiterIdleTTL - time.Minute)
	limiter.limiterFor("10.0.0.3")
	assert.Equal(t, 2, limiter.tracked())
	limiter.mu.Lock()
	_, stillTracked := limiter.visitors["10.0.0.1"]
	limiter.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(t, nil, RequestLogger(zap.New(core)))

	w := get(r, map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("Request completed").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["requestID"])
		assert.Equal(t, "/ping", fields["path"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	}

	w = get(r, nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
