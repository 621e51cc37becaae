package api

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	apperrors "github.com/portfolio-importer/internal/errors"
)

// RateLimiter throttles uploads per user and platform account
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int
}

// NewRateLimiter creates a limiter allowing uploadsPerMinute sustained
// uploads with bursts of burst. Non-positive values fall back to 6 and 3.
func NewRateLimiter(uploadsPerMinute, burst int) *RateLimiter {
	if uploadsPerMinute <= 0 {
		uploadsPerMinute = 6
	}
	if burst <= 0 {
		burst = 3
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Every(time.Minute / time.Duration(uploadsPerMinute)),
		burstSize: burst,
	}
}

// getLimiter returns the rate limiter for a user and account pair
func (rl *RateLimiter) getLimiter(userID, accountID string) *rate.Limiter {
	key := userID + "/" + accountID

	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// Reserve takes one upload slot. When none is free it returns how long the
// caller must wait, and the slot is not consumed.
func (rl *RateLimiter) Reserve(userID, accountID string) (time.Duration, bool) {
	limiter := rl.getLimiter(userID, accountID)
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return 0, true
	}
	reservation.Cancel()
	return delay, false
}

// UploadRateLimitMiddleware rejects uploads over the per-account budget with 429
func UploadRateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				userID = r.RemoteAddr // Use IP address as fallback
			}
			accountID := mux.Vars(r)["accountId"]

			if wait, ok := rl.Reserve(userID, accountID); !ok {
				retryAfter := int(math.Ceil(wait.Seconds()))
				respondServiceError(w, r, apperrors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
