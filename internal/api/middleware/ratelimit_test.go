package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windforecast/windforecast/internal/api/middleware"
)

func doFrom(handler http.Handler, remoteAddr, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts:refresh", http.NoBody)
	req.RemoteAddr = remoteAddr
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RequestID(middleware.RateLimitByIP(middleware.PerMinute(3))(http.HandlerFunc(okHandler)))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.1:12345", "").Code, "request %d", i+1)
	}

	rec := doFrom(handler, "10.0.0.1:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too-many-requests")
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Contains(t, rec.Body.String(), "/v1/forecasts:refresh")

	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.2:12345", "").Code, "other IPs keep their own budget")
}

func TestRateLimitByOperator_KeysByOperator(t *testing.T) {
	tokens := newTestTokens(t)
	alice, _, err := tokens.GenerateOperatorToken("ops-alice", time.Minute)
	require.NoError(t, err)
	bob, _, err := tokens.GenerateOperatorToken("ops-bob", time.Minute)
	require.NoError(t, err)

	handler := middleware.OperatorAuth(tokens)(
		middleware.RateLimitByOperator(middleware.PerMinute(2))(http.HandlerFunc(okHandler)),
	)

	// Same operator from different addresses shares one budget.
	assert.Equal(t, http.StatusOK, doFrom(handler, "192.168.1.1:1", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusOK, doFrom(handler, "192.168.1.2:1", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "192.168.1.3:1", "Bearer "+alice).Code)

	assert.Equal(t, http.StatusOK, doFrom(handler, "192.168.1.1:1", "Bearer "+bob).Code)
}

func TestRateLimitByOperator_FallsBackToIP(t *testing.T) {
	handler := middleware.RateLimitByOperator(middleware.PerMinute(1))(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, doFrom(handler, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, doFrom(handler, "172.16.0.2:1", "").Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 10, middleware.RefreshRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.RefreshRateLimit.WindowLength)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 7, WindowLength: time.Minute}, middleware.PerMinute(7))
}
