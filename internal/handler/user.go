package handler

import (
	"license-management-system/internal/middleware"
	"license-management-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var input LoginInput
	if err := bindJSON(c, &input); err != nil {
		return h.fail(c, err)
	}

	result, err := h.auth.Login(c.UserContext(), service.LoginRequest{
		Username:  input.Username,
		Password:  input.Password,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user": fiber.Map{
			"id":         result.User.ID,
			"username":   result.User.Username,
			"email":      result.User.Email,
			"role":       result.User.Role,
			"last_login": result.User.LastLogin,
		},
	})
}

// CurrentUser 返回令牌对应的用户
func (h *Handler) CurrentUser(c *fiber.Ctx) error {
	user, err := h.auth.CurrentUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(user)
}
