package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/knowreal/knowreal-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for write counters.
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedKeyPrefix marks callers that blew through the limit.
	BlockedKeyPrefix = "blocked:"
)

// WriteLimiter counts dream writes per caller in Redis so the limit holds
// across server instances. Callers over the limit are blocked for blockFor.
// Redis failures let the request through.
type WriteLimiter struct {
	client   redis.UniversalClient
	window   time.Duration
	max      int
	blockFor time.Duration
}

func NewWriteLimiter(client redis.UniversalClient, window time.Duration, max int, blockFor time.Duration) *WriteLimiter {
	return &WriteLimiter{client: client, window: window, max: max, blockFor: blockFor}
}

// callerKey prefers the authenticated user so that users behind one NAT do not share a bucket.
func callerKey(r *http.Request) string {
	if identity := IdentityFrom(r.Context()); !identity.IsZero() {
		return "user:" + identity.UserID
	}
	return "ip:" + clientip.RealClientIP(r)
}

// Middleware limits non-GET requests. Mount it after RequireIdentity.
func (l *WriteLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := callerKey(r)
		count, blocked, err := l.hit(r.Context(), key)
		if err != nil {
			log.Printf("Warning: write rate limit unavailable: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if blocked {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.blockFor.Seconds())))
			failure(w, http.StatusTooManyRequests, "Too many changes. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(l.max-int(count), 0)))
		next.ServeHTTP(w, r)
	})
}

func (l *WriteLimiter) hit(ctx context.Context, key string) (int64, bool, error) {
	blockedKey := BlockedKeyPrefix + key
	n, err := l.client.Exists(ctx, blockedKey).Result()
	if err != nil {
		return 0, false, err
	}
	if n > 0 {
		return 0, true, nil
	}

	counterKey := RateLimitKeyPrefix + key
	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, false, err
	}
	if count == 1 {
		l.client.Expire(ctx, counterKey, l.window)
	}

	if count > int64(l.max) {
		if err := l.client.Set(ctx, blockedKey, "1", l.blockFor).Err(); err != nil {
			return count, false, fmt.Errorf("block %s: %w", key, err)
		}
		return count, true, nil
	}
	return count, false, nil
}
