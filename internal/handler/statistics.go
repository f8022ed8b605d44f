package handler

import (
	"time"

	"license-management-system/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// LicenseStatistics 处理许可证统计信息请求
func (h *Handler) LicenseStatistics(c *fiber.Ctx) error {
	// 解析日期，缺省时由服务层取最近 30 天
	start, err := queryDate(c, "start_date", "开始日期格式错误")
	if err != nil {
		return h.fail(c, err)
	}
	end, err := queryDate(c, "end_date", "结束日期格式错误")
	if err != nil {
		return h.fail(c, err)
	}
	// 结束日期包含当天
	if !end.IsZero() {
		end = end.AddDate(0, 0, 1)
	}

	stats, err := h.statistics.Compute(c.UserContext(), start, end)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"statistics":   stats,
		"success_rate": stats.GetSuccessRate(),
	})
}

func queryDate(c *fiber.Ctx, key, message string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.CodeValidation, err, message).
			WithDetails(map[string]string{key: "日期格式应为 YYYY-MM-DD"})
	}
	return t, nil
}
