package respond

import (
	"errors"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// Error 把错误转换为 {"error", "code", "details"} 响应
func Error(c *fiber.Ctx, logg *logger.Logger, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case apperr.CodeInternal, apperr.CodeDependency:
	default:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	body := fiber.Map{
		"error": msg,
		"code":  string(typed.Code()),
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			body["details"] = details
		}
	}

	if logg != nil && meta.HTTPStatus >= fiber.StatusInternalServerError {
		ctx := logg.WithFields(c.UserContext(), map[string]any{
			"error_code": string(typed.Code()),
			"path":       c.Path(),
		})
		logg.Error(ctx, "request failed", err)
	}

	return c.Status(meta.HTTPStatus).JSON(body)
}

// ErrorHandler 供 fiber.Config 使用，处理未被 handler 捕获的错误
func ErrorHandler(logg *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fe.Message,
				"code":  codeForStatus(fe.Code),
			})
		}
		return Error(c, logg, err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return string(apperr.CodeValidation)
	case fiber.StatusUnauthorized:
		return string(apperr.CodeUnauthorized)
	case fiber.StatusForbidden:
		return string(apperr.CodeForbidden)
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return string(apperr.CodeNotFound)
	case fiber.StatusTooManyRequests:
		return string(apperr.CodeRateLimit)
	default:
		return string(apperr.CodeInternal)
	}
}
