package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimiterRejectsBurstOverflowPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, err := NewRateLimiter(1, 2, zap.NewNop())
	require.NoError(t, err)
	router := gin.New()
	router.POST("/api/users/signin", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(remoteAddr string) int {
		request := httptest.NewRequest(http.MethodPost, "/api/users/signin", http.NoBody)
		request.RemoteAddr = remoteAddr
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder.Code
	}

	for attempt := 0; attempt < 2; attempt++ {
		require.Equal(t, http.StatusOK, send("10.0.0.1:1234"), "attempt %d", attempt)
	}
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"), "other clients keep their own budget")
}

func TestNewRateLimiterClampsNonPositiveSettings(t *testing.T) {
	limiter, err := NewRateLimiter(0, 0, nil)
	require.NoError(t, err)

	first := limiter.limiterFor("10.0.0.1")
	assert.Equal(t, 1, first.Burst())
	assert.True(t, first.Allow())
	assert.False(t, first.Allow())
	assert.Same(t, first, limiter.limiterFor("10.0.0.1"))
}
