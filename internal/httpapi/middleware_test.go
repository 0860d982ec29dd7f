package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineMiddlewareCancelsContextAfterTimeout(t *testing.T) {
	router := gin.New()
	router.Use(DeadlineMiddleware(10 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusGatewayTimeout, "cancelled")
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestAuthMiddlewareRejectsMalformedBearerHeader(t *testing.T) {
	ts := newTestStack(t, true)
	rec := ts.do(t, http.MethodPost, "/parse", `{"html":"<html></html>"}`,
		map[string]string{"Authorization": "NotBearer abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimsFromPanicsWithoutAuthMiddleware(t *testing.T) {
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		assert.Panics(t, func() { ClaimsFrom(c) })
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
