package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"project-service/internal/auth"
	apperrors "project-service/pkg/errors"
	"project-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"
	"golang.org/x/time/rate"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRetryAfter         = "Retry-After"

	msgRateLimitExceeded = "rate limit exceeded"
)

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c echo.Context) string

// ByPrincipalOrIP keys authenticated callers by identity and everyone else
// by client address. It must run after authentication.
func ByPrincipalOrIP(c echo.Context) string {
	if p, ok := auth.Current(c).Principal(); ok {
		return "user:" + p.ID().String()
	}
	return "ip:" + c.RealIP()
}

// ByIP keys by client address only. Login attempts are anonymous by nature.
func ByIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// minIdleEviction is the shortest time a key must go unused before its
// bucket is dropped.
const minIdleEviction = time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// RateLimiter implements token bucket rate limiting per key. Buckets idle
// for longer than a full refill are evicted; a fresh bucket starts full, so
// eviction never hands a caller more than it would have had.
type RateLimiter struct {
	limiters  sync.Map // key -> *bucket
	rate      rate.Limit
	burst     int
	clock     abtime.AbstractTime
	idleAfter time.Duration
	lastSweep atomic.Int64
}

type LimiterOption func(*RateLimiter)

// WithLimiterClock replaces the real clock. Tests pass an *abtime.ManualTime.
func WithLimiterClock(clock abtime.AbstractTime) LimiterOption {
	return func(rl *RateLimiter) {
		rl.clock = clock
	}
}

// NewRateLimiter creates a limiter refilling requestsPerSecond tokens per
// second up to burst.
func NewRateLimiter(requestsPerSecond float64, burst int, opts ...LimiterOption) *RateLimiter {
	return newRateLimiter(rate.Limit(requestsPerSecond), burst, opts)
}

// NewWindowRateLimiter spreads limit requests evenly over window, allowing
// all of them as an initial burst.
func NewWindowRateLimiter(limit int, window time.Duration, opts ...LimiterOption) *RateLimiter {
	return newRateLimiter(rate.Every(window/time.Duration(limit)), limit, opts)
}

func newRateLimiter(limit rate.Limit, burst int, opts []LimiterOption) *RateLimiter {
	rl := &RateLimiter{
		rate:  limit,
		burst: burst,
		clock: abtime.NewRealTime(),
	}
	for _, opt := range opts {
		opt(rl)
	}

	rl.idleAfter = minIdleEviction
	if limit > 0 && limit != rate.Inf {
		if full := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); full > rl.idleAfter {
			rl.idleAfter = full
		}
	}
	rl.lastSweep.Store(rl.clock.Now().UnixNano())
	return rl
}

func (rl *RateLimiter) getBucket(key string, now time.Time) *bucket {
	b, exists := rl.limiters.Load(key)
	if !exists {
		b, _ = rl.limiters.LoadOrStore(key, &bucket{limiter: rate.NewLimiter(rl.rate, rl.burst)})
	}
	bk := b.(*bucket)
	bk.lastSeen.Store(now.UnixNano())
	return bk
}

// sweep drops idle buckets at most once per idleAfter.
func (rl *RateLimiter) sweep(now time.Time) {
	last := rl.lastSweep.Load()
	if now.UnixNano()-last < int64(rl.idleAfter) || !rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	cutoff := now.Add(-rl.idleAfter).UnixNano()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*bucket).lastSeen.Load() < cutoff {
			rl.limiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := rl.clock.Now()
	rl.sweep(now)

	limiter := rl.getBucket(key, now).limiter
	if !limiter.AllowN(now, 1) {
		return Decision{Limit: rl.burst, RetryAfter: rl.refillInterval()}, nil
	}
	return Decision{
		Allowed:   true,
		Limit:     rl.burst,
		Remaining: int(limiter.TokensAt(now)),
	}, nil
}

func (rl *RateLimiter) refillInterval() time.Duration {
	if rl.rate <= 0 || rl.rate == rate.Inf {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(rl.rate)).Round(time.Millisecond)
}

// RateLimit rejects requests over the limiter's budget with 429. When the
// limiter backend fails the request is let through and the failure logged.
func RateLimit(limiter Limiter, key KeyFunc, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := limiter.Allow(c.Request().Context(), key(c))
			if err != nil {
				log.Error().
					Str("error", logger.SanitizeError(err)).
					Str("request_id", GetRequestID(c)).
					Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			header := c.Response().Header()
			header.Set(headerRateLimitLimit, strconv.Itoa(decision.Limit))
			header.Set(headerRateLimitRemaining, strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				header.Set(headerRetryAfter, strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
				return apperrors.TooManyRequests(msgRateLimitExceeded)
			}

			return next(c)
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
