package database

import (
	"context"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}

// RecordLogin 写登录日志，成功时同时更新最后登录时间
func (s *UserStore) RecordLogin(ctx context.Context, entry *model.LoginLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return apperr.Wrap(apperr.CodeInternal, err, "record login")
		}
		if entry.Status != model.LoginSuccess || entry.UserID == 0 {
			return nil
		}
		now := entry.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		if err := tx.Model(&model.User{}).Where("id = ?", entry.UserID).Update("last_login", now).Error; err != nil {
			return apperr.Wrap(apperr.CodeInternal, err, "update last login")
		}
		return nil
	})
}
