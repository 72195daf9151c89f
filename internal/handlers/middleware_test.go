package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicez/internal/handlers/render"
	"musicez/internal/testutil"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := rec.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "upstream-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	h := testutil.NewHTTPTestHelper(t)
	h.SetRouter(router)
	h.AssertErrorResponse(h.GetJSON("/boom"), http.StatusInternalServerError, render.CodeInternal)
}

func TestRateLimiter(t *testing.T) {
	t.Run("per client budget", func(t *testing.T) {
		rl := NewRateLimiter(1, 2)
		assert.True(t, rl.Allow("a"))
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"), "clients do not share a bucket")
	})

	t.Run("cleanup drops idle clients", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		rl.Allow("a")
		assert.Equal(t, 0, rl.Cleanup(time.Now()))
		assert.Equal(t, 1, rl.Cleanup(time.Now().Add(time.Hour)))
	})

	t.Run("middleware answers 429", func(t *testing.T) {
		api := newTestAPI(t, apiOptions{rateLimiter: NewRateLimiter(0.001, 1)})
		h := api.helper(t)

		first := h.GetJSON("/api/v1/songs/search?q=a")
		require.Equal(t, http.StatusBadRequest, first.Code)

		second := h.GetJSON("/api/v1/songs/search?q=a")
		h.AssertErrorResponse(second, http.StatusTooManyRequests, render.CodeRateLimited)
		assert.Equal(t, "1", second.Header().Get("Retry-After"))
	})

	t.Run("operational routes are not limited", func(t *testing.T) {
		api := newTestAPI(t, apiOptions{rateLimiter: NewRateLimiter(0.001, 1)})
		h := api.helper(t)
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, h.GetJSON("/health").Code)
		}
	})
}
