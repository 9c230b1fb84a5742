package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	httpdto "github.com/vibast-solutions/ms-go-identity/app/dto/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const rateLimitKeyPrefix = "identity:ratelimit:"

type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// noExpiry is what TTL reports for a key that exists without a timeout.
const noExpiry = time.Duration(-1)

// RateLimiter is a fixed window counter per client IP and route kept in Redis.
// A nil store disables it. Redis failures let the request through.
type RateLimiter struct {
	store  counterStore
	limit  int64
	window time.Duration
	block  time.Duration
}

func NewRateLimiter(store counterStore, limit int, window, block time.Duration) *RateLimiter {
	if block < window {
		block = window
	}
	return &RateLimiter{
		store:  store,
		limit:  int64(limit),
		window: window,
		block:  block,
	}
}

func (l *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if l == nil || l.store == nil || l.limit <= 0 {
			return next(c)
		}

		ctx := c.Request().Context()
		key := rateLimitKeyPrefix + c.Path() + ":" + c.RealIP()

		count, err := l.store.Incr(ctx, key).Result()
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Rate limiter unavailable, allowing request")
			return next(c)
		}

		switch {
		case count == 1:
			l.expire(ctx, key, l.window)
		case count == l.limit+1:
			l.expire(ctx, key, l.block)
		default:
			// an EXPIRE lost on an earlier hit would leave the counter alive forever
			if ttl, err := l.store.TTL(ctx, key).Result(); err == nil && ttl == noExpiry {
				if count > l.limit {
					l.expire(ctx, key, l.block)
				} else {
					l.expire(ctx, key, l.window)
				}
			}
		}

		remaining := l.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > l.limit {
			logrus.WithFields(logrus.Fields{
				"ip":   c.RealIP(),
				"path": c.Path(),
			}).Warn("Rate limit exceeded")
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(l.block.Seconds())))
			return c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("too many requests, please try again later"))
		}

		return next(c)
	}
}

func (l *RateLimiter) expire(ctx context.Context, key string, d time.Duration) {
	if err := l.store.Expire(ctx, key, d).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to set rate limit expiry")
	}
}
