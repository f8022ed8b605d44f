package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"
	"license-management-system/internal/metrics"
	"license-management-system/internal/model"

	"github.com/google/uuid"
)

type VerifyRequest struct {
	LicenseID  uuid.UUID
	Context    model.VerificationContext
	IPAddress  string
	DeviceInfo string
}

type VerificationParams struct {
	Licenses  LicenseStore
	Logs      VerificationLogSink
	Evaluator Evaluator
	Clock     Clock
	Metrics   *metrics.LicenseMetrics
	Logger    *logger.Logger
}

// VerificationService 加载许可证、执行规则判定、占用席位并记录校验日志
type VerificationService struct {
	licenses  LicenseStore
	logs      VerificationLogSink
	evaluator Evaluator
	clock     Clock
	metrics   *metrics.LicenseMetrics
	logg      *logger.Logger
}

func NewVerificationService(params VerificationParams) (*VerificationService, error) {
	if params.Licenses == nil {
		return nil, errors.New("license store required")
	}
	if params.Logs == nil {
		return nil, errors.New("verification log sink required")
	}
	if params.Clock == nil {
		params.Clock = SystemClock{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &VerificationService{
		licenses:  params.Licenses,
		logs:      params.Logs,
		evaluator: params.Evaluator,
		clock:     params.Clock,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *VerificationService) Verify(ctx context.Context, req VerifyRequest) (*model.VerificationResult, error) {
	if req.LicenseID == uuid.Nil {
		return nil, apperr.New(apperr.CodeValidation, "License ID is required")
	}
	ctx = s.logg.WithLicenseID(ctx, req.LicenseID.String())

	license, err := s.licenses.Get(ctx, req.LicenseID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := s.evaluator.Evaluate(license, req.Context, now)

	if s.evaluator.ShouldAddSeat(license, req.Context, result) {
		updated, err := s.licenses.IncrementSeats(ctx, license.ID)
		switch {
		case err == nil:
			current := updated.CurrentUsers
			result.CurrentUsers = &current
			s.metrics.IncSeatOp(SeatOpIncrement, "ok")
		case apperr.Is(err, apperr.CodeLimitExceeded):
			// 并发请求抢先占满了席位
			s.metrics.IncSeatOp(SeatOpIncrement, "limit")
			markSeatRace(&result, license, err)
		default:
			s.metrics.IncSeatOp(SeatOpIncrement, "error")
			return nil, err
		}
	}

	s.appendLog(ctx, req, now, result)
	s.metrics.IncVerification(string(result.Status))
	return &result, nil
}

// markSeatRace 条件更新失败时把结果改为席位已满
func markSeatRace(result *model.VerificationResult, license *model.License, err error) {
	current, max := *license.MaxUsersAllowed, *license.MaxUsersAllowed
	if appErr := apperr.As(err); appErr != nil {
		if details, ok := appErr.Details().(map[string]int); ok {
			current, max = details["current_users"], details["max_users_allowed"]
		}
	}
	msg := model.SeatLimitMessage(max, current)
	result.IsValid = false
	result.Status = model.StatusExpired
	result.ErrorMessage = &msg
	result.CurrentUsers = &current
	result.MaxUsersAllowed = &max
}

// appendLog 日志写入失败不影响校验结果
func (s *VerificationService) appendLog(ctx context.Context, req VerifyRequest, now time.Time, result model.VerificationResult) {
	entry := &model.LicenseVerificationLog{
		LicenseID:        req.LicenseID,
		IsValid:          result.IsValid,
		Status:           string(result.Status),
		IPAddress:        req.IPAddress,
		MacAddress:       req.Context.MacAddress,
		CountryCode:      strings.ToUpper(strings.TrimSpace(req.Context.CountryCode)),
		DeviceInfo:       req.DeviceInfo,
		Message:          result.Message(),
		VerificationDate: now,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.metrics.IncLogFailure()
		s.logg.Warn(ctx, "failed to append verification log", err)
	}
}
