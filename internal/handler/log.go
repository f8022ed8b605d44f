package handler

import (
	"license-management-system/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetLogs(c *fiber.Ctx) error {
	return h.operationLogs(c, 0)
}

// GetUserLogs 只返回当前用户的操作日志
func (h *Handler) GetUserLogs(c *fiber.Ctx) error {
	return h.operationLogs(c, middleware.UserID(c))
}

func (h *Handler) operationLogs(c *fiber.Ctx, userID uint) error {
	// 获取分页参数
	page, err := queryInt(c, "page", 1, 1, 1<<20)
	if err != nil {
		return h.fail(c, err)
	}
	pageSize, err := queryInt(c, "page_size", 10, 1, 100)
	if err != nil {
		return h.fail(c, err)
	}

	logs, total, err := h.audit.GetOperationLogs(c.UserContext(), userID, page, pageSize)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}
