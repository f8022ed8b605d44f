package middleware

import (
	"context"
	"strconv"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"
	"license-management-system/internal/respond"

	"github.com/gofiber/fiber/v2"
)

const verifyRateLimitPrefix = "rl:verify:"

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// VerifyRateLimit 按客户端 IP 做固定窗口限流；store 为空或 limit<=0 时直接放行
func VerifyRateLimit(limit int, window time.Duration, store rateLimiterStore, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if store == nil || limit <= 0 || window <= 0 {
			return c.Next()
		}

		ip := c.IP()
		allowed, count, err := allow(c.UserContext(), store, verifyRateLimitPrefix+ip, limit, window)
		if err != nil {
			return respond.Error(c, logg, apperr.Wrap(apperr.CodeDependency, err, "rate limiter unavailable"))
		}
		if !allowed {
			if logg != nil {
				ctx := logg.WithFields(c.UserContext(), map[string]any{
					"ip":     ip,
					"count":  count,
					"limit":  limit,
					"window": window.String(),
				})
				logg.Warn(ctx, "verify rate limit exceeded", nil)
			}
			c.Set(fiber.HeaderRetryAfter, retryAfter(window))
			return respond.Error(c, logg, apperr.New(apperr.CodeRateLimit, "too many verification requests"))
		}
		return c.Next()
	}
}

func allow(ctx context.Context, store rateLimiterStore, key string, limit int, window time.Duration) (bool, int64, error) {
	count, err := store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= int64(limit), count, nil
}

func retryAfter(window time.Duration) string {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
