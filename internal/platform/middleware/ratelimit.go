package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"verity/internal/ratelimit/bucket"
	"verity/pkg/requestcontext"
)

// RateLimit bounds submissions per authenticated user. Unauthenticated
// requests fall back to the remote address as the key.
func RateLimit(store *bucket.InMemoryBucketStore, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.UserID(ctx).String()
			if key == "" {
				key = r.RemoteAddr
			}

			result, err := store.Allow(ctx, key, limit, window)
			if err != nil {
				// Rate limiting must not take the service down; allow on error.
				logger.ErrorContext(ctx, "rate limit check failed",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				logger.WarnContext(ctx, "rate limit exceeded",
					"key", key,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
