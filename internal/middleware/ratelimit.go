package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/incidentfox/incidentfox/internal/ratelimit"
)

// RateLimit rejects requests with 429 once the limiter is exhausted. A nil
// or disabled limiter lets everything through.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				secs := int(math.Ceil(limiter.RetryAfter().Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
