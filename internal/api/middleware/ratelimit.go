package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
)

// Counter increments a rate-limit window counter. Implemented by the
// Redis cache so limits hold across replicas.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit limits each caller to perMinute requests in a fixed one
// minute window, keyed by authenticated user ID when present and by
// client IP otherwise. When the shared counter is unreachable the
// middleware falls back to an in-process limiter instead of failing
// open completely or taking requests down with Redis.
func RateLimit(counter Counter, perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("middleware", "ratelimit"))
	fallback := newLocalLimiter(perMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			allowed, err := allowShared(r.Context(), counter, key, perMinute)
			if err != nil {
				log.Warn("shared rate limiter unavailable, using local fallback", "error", err)
				allowed = fallback.allow(key)
			}

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				shared.RespondWithError(w, http.StatusTooManyRequests,
					service.CodeBusinessRule, "rate limit exceeded", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowShared(ctx context.Context, counter Counter, key string, perMinute int) (bool, error) {
	if counter == nil {
		return false, fmt.Errorf("no shared counter configured")
	}

	window := time.Now().Unix() / 60
	count, err := counter.Incr(ctx, fmt.Sprintf("ratelimit:%s:%d", key, window), time.Minute)
	if err != nil {
		return false, err
	}
	return count <= int64(perMinute), nil
}

// clientKey identifies the caller: the authenticated user if any,
// otherwise the remote address (chi's RealIP middleware has already
// rewritten it from the forwarding headers).
func clientKey(r *http.Request) string {
	if userID, ok := shared.UserIDFromContext(r.Context()); ok {
		return "user:" + userID.String()
	}
	return "ip:" + r.RemoteAddr
}

// localLimiter is the in-process fallback: one token bucket per caller.
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	perMinute int
}

func newLocalLimiter(perMinute int) *localLimiter {
	return &localLimiter{
		limiters:  make(map[string]*rate.Limiter),
		perMinute: perMinute,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
