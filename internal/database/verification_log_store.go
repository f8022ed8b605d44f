package database

import (
	"context"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultLogLimit = 100

type VerificationLogStore struct {
	db *gorm.DB
}

func NewVerificationLogStore(db *gorm.DB) *VerificationLogStore {
	return &VerificationLogStore{db: db}
}

func (s *VerificationLogStore) Append(ctx context.Context, entry *model.LicenseVerificationLog) error {
	if entry.VerificationDate.IsZero() {
		entry.VerificationDate = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "append verification log")
	}
	return nil
}

// ListByLicense 按校验时间倒序返回
func (s *VerificationLogStore) ListByLicense(ctx context.Context, licenseID uuid.UUID, limit int) ([]model.LicenseVerificationLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultLogLimit
	}
	var logs []model.LicenseVerificationLog
	err := s.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("verification_date DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list verification logs")
	}
	return logs, nil
}

// ListBetween 返回 [from, to) 区间内的日志
func (s *VerificationLogStore) ListBetween(ctx context.Context, from, to time.Time) ([]model.LicenseVerificationLog, error) {
	var logs []model.LicenseVerificationLog
	err := s.db.WithContext(ctx).
		Where("verification_date >= ? AND verification_date < ?", from, to).
		Order("verification_date ASC").
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list verification logs")
	}
	return logs, nil
}
