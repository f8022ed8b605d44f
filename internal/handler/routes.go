package handler

import (
	"context"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/middleware"
	"license-management-system/internal/model"

	"github.com/gofiber/fiber/v2"
)

type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type RateStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RouteConfig 路由依赖；RateStore 为空时校验接口不限流
type RouteConfig struct {
	JWTSecret    string
	Users        UserFinder
	RateStore    RateStore
	VerifyLimit  int
	VerifyWindow time.Duration
	Health       func(ctx context.Context) error
}

func (h *Handler) SetupRoutes(app fiber.Router, cfg RouteConfig) {
	app.Get("/healthz", h.healthz(cfg.Health))

	// 路由组
	api := app.Group("/api/v1")

	authMW := middleware.Auth(cfg.JWTSecret, h.logg)
	adminMW := middleware.AdminOnly(cfg.Users, h.logg)

	// 认证路由
	auth := api.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Get("/me", authMW, h.CurrentUser)

	// 许可证路由
	licenses := api.Group("/licenses")

	// 客户端校验不需要登录
	licenses.Post("/verify",
		middleware.VerifyRateLimit(cfg.VerifyLimit, cfg.VerifyWindow, cfg.RateStore, h.logg),
		h.VerifyLicense,
	)

	// 管理员专用路由
	licenses.Get("/", authMW, adminMW, h.ListLicenses)
	licenses.Post("/", authMW, adminMW, h.CreateLicense)
	licenses.Get("/statistics", authMW, adminMW, h.LicenseStatistics)
	licenses.Get("/:id", authMW, adminMW, h.GetLicense)
	licenses.Put("/:id", authMW, adminMW, h.UpdateLicense)
	licenses.Delete("/:id", authMW, adminMW, h.DeleteLicense)
	licenses.Get("/:id/logs", authMW, adminMW, h.LicenseLogs)
	licenses.Post("/:id/seats/increment", authMW, adminMW, h.IncrementSeats)
	licenses.Post("/:id/seats/decrement", authMW, adminMW, h.DecrementSeats)
	licenses.Post("/:id/seats/reset", authMW, adminMW, h.ResetSeats)

	// 操作日志
	logs := api.Group("/logs", authMW)
	logs.Get("/mine", h.GetUserLogs)
	logs.Get("/", adminMW, h.GetLogs)
}

func (h *Handler) healthz(check func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if check != nil {
			if err := check(c.UserContext()); err != nil {
				return h.fail(c, apperr.Wrap(apperr.CodeDependency, err, "database unavailable"))
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
