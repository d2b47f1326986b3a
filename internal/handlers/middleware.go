package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cantogame/internal/security"
)

// RateLimit limits requests per authenticated user, or per client IP when the
// request carries no viewer
func RateLimit(limiter *security.RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + security.GetClientIP(r)
			if v, ok := ViewerFrom(r.Context()); ok {
				key = "user:" + v.UserID
			}

			if !limiter.Allow(key) {
				wait := limiter.RetryAfter(key)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
