package service

import (
	"context"
	"errors"

	"license-management-system/internal/apperr"
	"license-management-system/internal/metrics"
	"license-management-system/internal/model"

	"github.com/google/uuid"
)

const (
	SeatOpIncrement = "increment"
	SeatOpDecrement = "decrement"
	SeatOpReset     = "reset"
)

// SeatService 管理端直接调整席位计数
type SeatService struct {
	licenses LicenseStore
	audit    *AuditService
	metrics  *metrics.LicenseMetrics
}

func NewSeatService(licenses LicenseStore, audit *AuditService, m *metrics.LicenseMetrics) (*SeatService, error) {
	if licenses == nil {
		return nil, errors.New("license store required")
	}
	return &SeatService{licenses: licenses, audit: audit, metrics: m}, nil
}

func (s *SeatService) Increment(ctx context.Context, actorID uint, id uuid.UUID) (*model.License, error) {
	return s.apply(ctx, actorID, id, SeatOpIncrement, model.ActionSeatIncrement, s.licenses.IncrementSeats)
}

// Decrement 计数为 0 时保持不变
func (s *SeatService) Decrement(ctx context.Context, actorID uint, id uuid.UUID) (*model.License, error) {
	return s.apply(ctx, actorID, id, SeatOpDecrement, model.ActionSeatDecrement, s.licenses.DecrementSeats)
}

func (s *SeatService) Reset(ctx context.Context, actorID uint, id uuid.UUID) (*model.License, error) {
	return s.apply(ctx, actorID, id, SeatOpReset, model.ActionSeatReset, s.licenses.ResetSeats)
}

func (s *SeatService) apply(
	ctx context.Context,
	actorID uint,
	id uuid.UUID,
	op, action string,
	fn func(context.Context, uuid.UUID) (*model.License, error),
) (*model.License, error) {
	license, err := fn(ctx, id)
	if err != nil {
		s.metrics.IncSeatOp(op, seatOpResult(err))
		return nil, err
	}
	s.metrics.IncSeatOp(op, "ok")
	s.audit.LogOperation(ctx, actorID, action, model.TargetLicense, id.String(), map[string]int{
		"current_users": license.CurrentUsers,
	})
	return license, nil
}

func seatOpResult(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeLimitExceeded:
		return "limit"
	case apperr.CodeUnsupported:
		return "unsupported"
	case apperr.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}
