package service

import (
	"context"
	"encoding/json"
	"errors"

	"license-management-system/internal/logger"
	"license-management-system/internal/model"
)

// AuditService 记录管理端操作日志
type AuditService struct {
	store OperationLogStore
	logg  *logger.Logger
}

func NewAuditService(store OperationLogStore, logg *logger.Logger) (*AuditService, error) {
	if store == nil {
		return nil, errors.New("operation log store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &AuditService{store: store, logg: logg}, nil
}

// LogOperation 写入失败只记录告警，不中断业务操作
func (s *AuditService) LogOperation(ctx context.Context, userID uint, action, target, targetID string, details interface{}) {
	if s == nil {
		return
	}
	entry := &model.OperationLog{
		UserID:   userID,
		Action:   action,
		Target:   target,
		TargetID: targetID,
	}
	if details != nil {
		detailsJSON, err := json.Marshal(details)
		if err != nil {
			s.logg.Warn(ctx, "failed to encode operation details", err)
		} else {
			entry.Details = string(detailsJSON)
		}
	}
	if err := s.store.Append(ctx, entry); err != nil {
		s.logg.Warn(ctx, "failed to record operation log", err)
	}
}

// GetOperationLogs 获取操作日志列表，userID 为 0 时返回全部
func (s *AuditService) GetOperationLogs(ctx context.Context, userID uint, page, pageSize int) ([]model.OperationLog, int64, error) {
	return s.store.List(ctx, userID, page, pageSize)
}
