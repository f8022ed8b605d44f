package database

import (
	"context"
	"errors"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LicenseStore struct {
	db *gorm.DB
}

func NewLicenseStore(db *gorm.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

func (s *LicenseStore) withLists(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("MacAddresses").
		Preload("AllowedCountries")
}

// Create 在一个事务里写入许可证和白名单
func (s *LicenseStore) Create(ctx context.Context, license *model.License) (*model.License, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(license).Error
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create license")
	}
	return s.Get(ctx, license.ID)
}

func (s *LicenseStore) Get(ctx context.Context, id uuid.UUID) (*model.License, error) {
	var license model.License
	err := s.withLists(ctx).Preload("Customer").First(&license, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "license")
	}
	return &license, nil
}

func (s *LicenseStore) List(ctx context.Context, filter model.LicenseFilter) ([]model.License, int64, error) {
	filter = filter.Normalize()

	// 计数和查询各用一条独立语句
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.License{})
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.ProductID != nil {
			q = q.Where("product_id = ?", *filter.ProductID)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, err, "count licenses")
	}

	var licenses []model.License
	offset := (filter.Page - 1) * filter.PageSize
	err := query().
		Preload("MacAddresses").
		Preload("AllowedCountries").
		Preload("Customer").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.PageSize).
		Find(&licenses).Error
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, err, "list licenses")
	}
	return licenses, total, nil
}

// All 返回全部许可证，用于统计和导出
func (s *LicenseStore) All(ctx context.Context) ([]model.License, error) {
	var licenses []model.License
	if err := s.withLists(ctx).Order("created_at ASC").Find(&licenses).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load licenses")
	}
	return licenses, nil
}

// Update 部分更新；名单字段出现时整体替换
func (s *LicenseStore) Update(ctx context.Context, id uuid.UUID, patch model.LicensePatch) (*model.License, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var license model.License
		if err := tx.First(&license, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "license")
		}

		patch.Apply(&license)
		if license.CurrentUsers < 0 {
			return apperr.New(apperr.CodeValidation, "current_users must not be negative")
		}
		if patch.CurrentUsers != nil && license.MaxUsersAllowed != nil && license.CurrentUsers > *license.MaxUsersAllowed {
			return apperr.New(apperr.CodeValidation, "current_users cannot exceed max_users_allowed")
		}

		query := tx.Model(&model.License{}).Where("id = ?", id)
		// 没有显式设置 current_users 时，上限不能低于当前计数
		if patch.CurrentUsers == nil && license.MaxUsersAllowed != nil {
			query = query.Where("current_users <= ?", *license.MaxUsersAllowed)
		}
		res := query.Updates(scalarColumns(&license, patch.CurrentUsers != nil))
		if res.Error != nil {
			return apperr.Wrap(apperr.CodeInternal, res.Error, "update license")
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeValidation, "max_users_allowed cannot be lower than current_users")
		}

		if patch.MacAddresses != nil {
			if err := tx.Where("license_id = ?", id).Delete(&model.LicenseMacAddress{}).Error; err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "replace mac addresses")
			}
			if len(license.MacAddresses) > 0 {
				if err := tx.Create(&license.MacAddresses).Error; err != nil {
					return apperr.Wrap(apperr.CodeInternal, err, "replace mac addresses")
				}
			}
		}
		if patch.AllowedCountries != nil {
			if err := tx.Where("license_id = ?", id).Delete(&model.LicenseAllowedCountry{}).Error; err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "replace allowed countries")
			}
			if len(license.AllowedCountries) > 0 {
				if err := tx.Create(&license.AllowedCountries).Error; err != nil {
					return apperr.Wrap(apperr.CodeInternal, err, "replace allowed countries")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func scalarColumns(l *model.License, withCurrent bool) map[string]any {
	cols := map[string]any{
		"customer_id":             l.CustomerID,
		"product_id":              l.ProductID,
		"product_version_id":      l.ProductVersionID,
		"license_type":            l.Type,
		"license_scope":           l.Scope,
		"licensing_period":        l.LicensingPeriod,
		"renewable_alert_message": l.RenewableAlertMessage,
		"grace_period_days":       l.GracePeriodDays,
		"expiry_date":             l.ExpiryDate,
		"max_users_allowed":       l.MaxUsersAllowed,
	}
	if withCurrent {
		cols["current_users"] = l.CurrentUsers
	}
	return cols
}

// Delete 硬删除许可证及其白名单和校验日志
func (s *LicenseStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{
			&model.LicenseMacAddress{},
			&model.LicenseAllowedCountry{},
			&model.LicenseVerificationLog{},
		} {
			if err := tx.Where("license_id = ?", id).Delete(child).Error; err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "delete license children")
			}
		}
		res := tx.Where("id = ?", id).Delete(&model.License{})
		if res.Error != nil {
			return apperr.Wrap(apperr.CodeInternal, res.Error, "delete license")
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeNotFound, "license not found")
		}
		return nil
	})
}

// IncrementSeats 条件更新，只有 current_users < max_users_allowed 时才加一
func (s *LicenseStore) IncrementSeats(ctx context.Context, id uuid.UUID) (*model.License, error) {
	if _, err := s.seatLicense(ctx, id); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&model.License{}).
		Where("id = ? AND current_users < max_users_allowed", id).
		Update("current_users", gorm.Expr("current_users + 1"))
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, res.Error, "increment seats")
	}
	if res.RowsAffected == 0 {
		latest, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, seatLimitError(latest)
	}
	return s.Get(ctx, id)
}

// DecrementSeats 计数为 0 时不做任何修改
func (s *LicenseStore) DecrementSeats(ctx context.Context, id uuid.UUID) (*model.License, error) {
	if _, err := s.seatLicense(ctx, id); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&model.License{}).
		Where("id = ? AND current_users > 0", id).
		Update("current_users", gorm.Expr("current_users - 1"))
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, res.Error, "decrement seats")
	}
	return s.Get(ctx, id)
}

func (s *LicenseStore) ResetSeats(ctx context.Context, id uuid.UUID) (*model.License, error) {
	if _, err := s.seatLicense(ctx, id); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&model.License{}).
		Where("id = ?", id).
		Update("current_users", 0)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, res.Error, "reset seats")
	}
	return s.Get(ctx, id)
}

func (s *LicenseStore) seatLicense(ctx context.Context, id uuid.UUID) (*model.License, error) {
	license, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !license.SupportsSeats() {
		return nil, apperr.New(apperr.CodeUnsupported, "license does not track user seats")
	}
	return license, nil
}

func seatLimitError(l *model.License) error {
	max := 0
	if l.MaxUsersAllowed != nil {
		max = *l.MaxUsersAllowed
	}
	return apperr.New(apperr.CodeLimitExceeded, model.SeatLimitMessage(max, l.CurrentUsers)).
		WithDetails(map[string]int{
			"current_users":     l.CurrentUsers,
			"max_users_allowed": max,
		})
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Newf(apperr.CodeNotFound, "%s not found", what)
	}
	return apperr.Wrap(apperr.CodeInternal, err, "load "+what)
}
