package middleware

import (
	"context"
	"strings"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"
	"license-management-system/internal/model"
	"license-management-system/internal/respond"
	"license-management-system/internal/util"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

type userFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

func Auth(secret string, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return respond.Error(c, logg, apperr.New(apperr.CodeUnauthorized, "未提供认证令牌"))
		}

		// 获取 Bearer token
		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			return respond.Error(c, logg, apperr.New(apperr.CodeUnauthorized, "无效的认证格式"))
		}

		// 验证令牌
		claims, err := util.ValidateToken(secret, strings.TrimSpace(tokenParts[1]))
		if err != nil {
			return respond.Error(c, logg, apperr.Wrap(apperr.CodeUnauthorized, err, "无效的认证令牌"))
		}

		// 将用户ID存储在上下文中
		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// AdminOnly 以数据库中的角色和状态为准，不信任令牌里的 role
func AdminOnly(users userFinder, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == 0 {
			return respond.Error(c, logg, apperr.New(apperr.CodeUnauthorized, "未提供认证令牌"))
		}

		// 从数据库获取用户信息并检查角色
		user, err := users.FindByID(c.UserContext(), userID)
		if err != nil {
			if apperr.Is(err, apperr.CodeNotFound) {
				return respond.Error(c, logg, apperr.New(apperr.CodeUnauthorized, "用户不存在"))
			}
			return respond.Error(c, logg, err)
		}
		if !user.IsActive() || !user.IsAdmin() {
			return respond.Error(c, logg, apperr.New(apperr.CodeForbidden, "需要管理员权限"))
		}

		return c.Next()
	}
}

// UserID 返回认证后的用户 ID，未认证为 0
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}
