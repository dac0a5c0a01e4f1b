package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/metrics"
	"github.com/princekumarofficial/media-service/internal/ratelimit"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

const (
	ActionUpload  = "upload"
	ActionGallery = "gallery"
)

type RateLimitConfig struct {
	limiters map[string]ratelimit.Limiter
}

// NewRateLimitConfig maps actions to limiters. Actions without a limiter
// are not limited.
func NewRateLimitConfig(limiters map[string]ratelimit.Limiter) *RateLimitConfig {
	return &RateLimitConfig{limiters: limiters}
}

// RateLimitMiddleware limits the authenticated caller per action. It fails
// closed when the counter store is unreachable.
func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					apperr.New(apperr.Unauthorized, "user not authenticated")))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), action+":"+userID)
			if err != nil {
				LoggerFromContext(r.Context()).Error("Rate limit check failed",
					"action", action, "error", err.Error())
				response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(
					apperr.Wrap(apperr.UpstreamUnavailable, err, "rate limit check failed")))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			reset := strconv.Itoa(int(math.Ceil(decision.ResetAfter.Seconds())))
			w.Header().Set("X-RateLimit-Reset", reset)

			if !decision.Allowed {
				metrics.RateLimitRejections.WithLabelValues(action).Inc()
				w.Header().Set("Retry-After", reset)
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					apperr.New(apperr.RateLimited, "rate limit exceeded")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
