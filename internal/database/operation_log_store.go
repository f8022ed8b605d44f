package database

import (
	"context"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"gorm.io/gorm"
)

type OperationLogStore struct {
	db *gorm.DB
}

func NewOperationLogStore(db *gorm.DB) *OperationLogStore {
	return &OperationLogStore{db: db}
}

func (s *OperationLogStore) Append(ctx context.Context, entry *model.OperationLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "append operation log")
	}
	return nil
}

// List 分页获取操作日志，userID 为 0 时不过滤
func (s *OperationLogStore) List(ctx context.Context, userID uint, page, pageSize int) ([]model.OperationLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	// 限制页面大小
	if pageSize > 100 {
		pageSize = 100
	}

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.OperationLog{})
		if userID != 0 {
			q = q.Where("user_id = ?", userID)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, err, "count operation logs")
	}

	var logs []model.OperationLog
	offset := (page - 1) * pageSize
	if err := query().Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, err, "list operation logs")
	}
	return logs, total, nil
}
