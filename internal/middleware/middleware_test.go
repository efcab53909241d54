package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcos-assessment-server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := perform(r, http.MethodGet, "/ping", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in release mode")
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/api", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := perform(r, http.MethodOptions, "/api", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodPost, "/api", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCorrelationID(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CorrelationIDKey)) })

	w := perform(r, http.MethodGet, "/id", map[string]string{CorrelationIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationIDHeader))

	w = perform(r, http.MethodGet, "/id", nil)
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(CorrelationIDHeader))
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID(), RequestTimeout(20*time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/slow", nil)
	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrTimeout, apiErr.Code)
	assert.Equal(t, w.Header().Get(CorrelationIDHeader), apiErr.RequestID)

	w = perform(r, http.MethodGet, "/fast", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(CorrelationID(), AuditLogger(logger))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(r, http.MethodGet, "/items/42", map[string]string{CorrelationIDHeader: "corr-1"})

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "corr-1", entry.Data["correlation_id"])
	assert.Equal(t, "/items/42", entry.Data["path"])
	assert.Equal(t, "/items/:id", entry.Data["route"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
}

func TestNewRateLimiter_Validation(t *testing.T) {
	_, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0, Burst: 1})
	assert.Error(t, err)
	_, err = NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, Burst: 0})
	assert.Error(t, err)

	rl, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, rl.Clients())
}

func TestRateLimiter_PerClientBudget(t *testing.T) {
	rl, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2, MaxClients: 2})
	require.NoError(t, err)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "budgets are per client")

	rl.Allow("10.0.0.3")
	assert.Equal(t, 2, rl.Clients(), "least recently seen client is evicted")
	assert.True(t, rl.Allow("10.0.0.1"), "evicted client starts with a fresh bucket")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1})
	require.NoError(t, err)

	r := gin.New()
	r.Use(CorrelationID(), rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func() *httptest.ResponseRecorder {
		rq := httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil))
		rq.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, rq)
		return w
	}

	assert.Equal(t, http.StatusOK, req().Code)

	w := req()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrRateLimit, apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)
}
