package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisRateLimiter is a fixed window counter shared by every instance. Redis
// errors let the request through.
type RedisRateLimiter struct {
	client  redis.Cmdable
	logger  logrus.FieldLogger
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

func NewRedisRateLimiter(client redis.Cmdable, name string, limit int, window time.Duration, logger logrus.FieldLogger) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  "merchhub:ratelimit:" + name + ":",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

func (l *RedisRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter := l.allow(c.Request().Context(), c.RealIP())
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Attempts.")
			}
			return next(c)
		}
	}
}

func (l *RedisRateLimiter) allow(parent context.Context, key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()

	redisKey := l.prefix + key
	counter, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.WithError(err).WithField("op", "incr").Warn("redis rate limiter error")
		return true, 0
	}
	if counter == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.WithError(err).WithField("op", "expire").Warn("redis rate limiter error")
		}
	}
	if int(counter) <= l.limit {
		return true, 0
	}
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = l.window
	}
	return false, ttl
}
