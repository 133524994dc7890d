package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/ragline/internal/api"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/cloo-solutions/ragline/internal/ratelimit"
)

// Allower decides whether one more call under key is permitted.
type Allower interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RateLimit rejects requests over the limit with 429. keyFunc derives the
// bucket key from the request. Limiter failures let the request through.
func RateLimit(limiter Allower, keyFunc func(r *http.Request) string, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				log.Warn("rate limiter unavailable", "error", err, "request_id", GetRequestID(r.Context()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(res.Limit-res.Count, 0), 10))
			if !res.Allowed {
				secs := int64(res.ResetAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller by authenticated client ID, falling back to IP.
func ClientKey(r *http.Request) string {
	if id := GetClientID(r.Context()); id != "" {
		return id
	}
	return clientIP(r)
}
