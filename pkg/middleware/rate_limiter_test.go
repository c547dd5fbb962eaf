package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	t.Run("Success - requests within burst pass", func(t *testing.T) {
		rl := NewRateLimiter(60, 2)
		h := rl.RateLimitMiddleware()(ok)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			require.NoError(t, h(e.NewContext(req, rec)))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("Error - request over the burst is rejected", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		h := rl.RateLimitMiddleware()(ok)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, h(e.NewContext(req, httptest.NewRecorder())))

		err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusTooManyRequests, he.Code)
	})

	t.Run("Success - limits are tracked per client IP", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		h := rl.RateLimitMiddleware()(ok)

		reqA := httptest.NewRequest(http.MethodGet, "/", nil)
		reqA.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
		require.NoError(t, h(e.NewContext(reqA, httptest.NewRecorder())))

		reqB := httptest.NewRequest(http.MethodGet, "/", nil)
		reqB.Header.Set(echo.HeaderXRealIP, "10.0.0.2")
		require.NoError(t, h(e.NewContext(reqB, httptest.NewRecorder())))
	})
}
