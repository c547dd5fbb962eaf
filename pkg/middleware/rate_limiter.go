package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP with a token bucket.
// Webhook endpoints get a generous limit; providers retry on 429.
type RateLimiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates a per-IP rate limiter.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.buckets[ip]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(r.perMinute)/60.0), r.burst)
	r.buckets[ip] = l
	return l
}

// RateLimitMiddleware rejects requests over the limit with 429.
func (r *RateLimiter) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !r.limiterFor(c.RealIP()).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
