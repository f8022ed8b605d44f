package handler

import (
	"errors"

	"license-management-system/internal/logger"
	"license-management-system/internal/respond"
	"license-management-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Handler 持有各业务服务，方法即 fiber 路由处理函数
type Handler struct {
	licenses   *service.LicenseService
	verifier   *service.VerificationService
	seats      *service.SeatService
	statistics *service.StatisticsService
	auth       *service.AuthService
	audit      *service.AuditService
	logg       *logger.Logger
}

type Params struct {
	Licenses     *service.LicenseService
	Verification *service.VerificationService
	Seats        *service.SeatService
	Statistics   *service.StatisticsService
	Auth         *service.AuthService
	Audit        *service.AuditService
	Logger       *logger.Logger
}

func New(params Params) (*Handler, error) {
	switch {
	case params.Licenses == nil:
		return nil, errors.New("license service required")
	case params.Verification == nil:
		return nil, errors.New("verification service required")
	case params.Seats == nil:
		return nil, errors.New("seat service required")
	case params.Statistics == nil:
		return nil, errors.New("statistics service required")
	case params.Auth == nil:
		return nil, errors.New("auth service required")
	case params.Audit == nil:
		return nil, errors.New("audit service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Handler{
		licenses:   params.Licenses,
		verifier:   params.Verification,
		seats:      params.Seats,
		statistics: params.Statistics,
		auth:       params.Auth,
		audit:      params.Audit,
		logg:       logg,
	}, nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return respond.Error(c, h.logg, err)
}
