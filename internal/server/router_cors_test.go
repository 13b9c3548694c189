package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(allowedOrigins []string, method, path string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(corsMiddleware(allowedOrigins))
	router.Handle(method, path, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestCORSMiddlewareAllowsViewHeader(t *testing.T) {
	router := newCORSRouter([]string{"https://app.example.com"}, http.MethodOptions, "/api/applications")

	request := httptest.NewRequest(http.MethodOptions, "/api/applications", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", viewIDHeader)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	allowHeaders := strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowHeaders, strings.ToLower(viewIDHeader))
	assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddlewareRejectsUnknownOrigin(t *testing.T) {
	router := newCORSRouter([]string{"https://app.example.com"}, http.MethodGet, "/api/statistics")

	request := httptest.NewRequest(http.MethodGet, "/api/statistics", http.NoBody)
	request.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestCORSMiddlewareWildcardEchoesOrigin(t *testing.T) {
	router := newCORSRouter([]string{"*"}, http.MethodGet, "/")

	request := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	request.Header.Set("Origin", "https://any.example.com")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, "https://any.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))
}
