package middleware

import (
	"time"

	"license-management-system/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-Id"

// RequestID 透传或生成请求 ID，并挂到请求的日志上下文里
func RequestID(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(HeaderRequestID, requestID)
		if logg != nil {
			c.SetUserContext(logg.WithRequestID(c.UserContext(), requestID))
		}
		return c.Next()
	}
}

// AccessLog 请求结束后写一条访问日志
func AccessLog(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			// 交给全局 ErrorHandler 写响应，这样状态码才准确
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		if logg == nil {
			return nil
		}

		status := c.Response().StatusCode()
		ctx := logg.WithFields(c.UserContext(), map[string]any{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
		})
		if userID := UserID(c); userID != 0 {
			ctx = logg.WithField(ctx, "user_id", userID)
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logg.Error(ctx, "request completed", nil)
		case status >= fiber.StatusBadRequest:
			logg.Warn(ctx, "request completed", nil)
		default:
			logg.Info(ctx, "request completed")
		}
		return nil
	}
}
