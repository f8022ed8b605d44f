package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"
	"license-management-system/internal/model"

	"github.com/google/uuid"
)

const (
	DefaultLicensingPeriod = 365
	syncTimeout            = 30 * time.Second
)

// CreateLicenseInput 创建许可证的参数
type CreateLicenseInput struct {
	CustomerID            uuid.UUID
	ProductID             uuid.UUID
	ProductVersionID      uuid.UUID
	Type                  model.LicenseType
	Scope                 model.LicenseScope
	LicensingPeriod       *int
	RenewableAlertMessage string
	GracePeriodDays       int
	ExpiryDate            *time.Time
	MaxUsersAllowed       *int
	MacAddresses          []string
	AllowedCountries      []string
}

type LicenseParams struct {
	Licenses LicenseRepository
	Catalog  CatalogReader
	Logs     VerificationLogReader
	Audit    *AuditService
	Syncer   LicenseSyncer
	Clock    Clock
	Logger   *logger.Logger
}

// LicenseService 管理端许可证增删改查
type LicenseService struct {
	licenses LicenseRepository
	catalog  CatalogReader
	logs     VerificationLogReader
	audit    *AuditService
	syncer   LicenseSyncer
	clock    Clock
	logg     *logger.Logger

	pending sync.WaitGroup
}

func NewLicenseService(params LicenseParams) (*LicenseService, error) {
	if params.Licenses == nil {
		return nil, errors.New("license repository required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog reader required")
	}
	if params.Logs == nil {
		return nil, errors.New("verification log reader required")
	}
	if params.Clock == nil {
		params.Clock = SystemClock{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &LicenseService{
		licenses: params.Licenses,
		catalog:  params.Catalog,
		logs:     params.Logs,
		audit:    params.Audit,
		syncer:   params.Syncer,
		clock:    params.Clock,
		logg:     params.Logger,
	}, nil
}

func (s *LicenseService) Create(ctx context.Context, actorID uint, input CreateLicenseInput) (*model.License, error) {
	if input.CustomerID == uuid.Nil || input.ProductID == uuid.Nil || input.ProductVersionID == uuid.Nil || input.Type == 0 {
		return nil, apperr.New(apperr.CodeValidation, "Customer ID, Product ID, Product Version ID and License Type are required")
	}

	period := DefaultLicensingPeriod
	if input.LicensingPeriod != nil {
		period = *input.LicensingPeriod
	}
	scope := input.Scope
	if scope == "" {
		scope = model.ScopeLocal
	}

	license := &model.License{
		CustomerID:            input.CustomerID,
		ProductID:             input.ProductID,
		ProductVersionID:      input.ProductVersionID,
		Type:                  input.Type,
		Scope:                 scope,
		LicensingPeriod:       period,
		RenewableAlertMessage: input.RenewableAlertMessage,
		GracePeriodDays:       input.GracePeriodDays,
		ExpiryDate:            input.ExpiryDate,
		MaxUsersAllowed:       input.MaxUsersAllowed,
		CurrentUsers:          0,
	}
	if err := validateLicense(license); err != nil {
		return nil, err
	}
	if err := s.checkCatalog(ctx, license.CustomerID, license.ProductID, license.ProductVersionID); err != nil {
		return nil, err
	}

	// 按日期计费但未指定到期日时，从现在起算授权周期
	if license.Type.Has(model.TypeDateBased) && license.ExpiryDate == nil {
		expiry := s.clock.Now().AddDate(0, 0, license.LicensingPeriod)
		license.ExpiryDate = &expiry
	}
	license.SetMacAddresses(input.MacAddresses)
	license.SetAllowedCountries(input.AllowedCountries)

	created, err := s.licenses.Create(ctx, license)
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation(ctx, actorID, model.ActionCreate, model.TargetLicense, created.ID.String(), map[string]any{
		"customer_id":  created.CustomerID,
		"product_id":   created.ProductID,
		"license_type": created.Type.String(),
	})
	s.syncAsync(created)
	return created, nil
}

func (s *LicenseService) Get(ctx context.Context, id uuid.UUID) (*model.License, error) {
	return s.licenses.Get(ctx, id)
}

func (s *LicenseService) List(ctx context.Context, filter model.LicenseFilter) ([]model.License, int64, error) {
	return s.licenses.List(ctx, filter)
}

// Update 部分更新；引用的客户或产品变化时重新检查目录
func (s *LicenseService) Update(ctx context.Context, actorID uint, id uuid.UUID, patch model.LicensePatch) (*model.License, error) {
	existing, err := s.licenses.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	preview := *existing
	patch.Apply(&preview)
	if err := validateLicense(&preview); err != nil {
		return nil, err
	}
	if patch.CustomerID != nil || patch.ProductID != nil || patch.ProductVersionID != nil {
		if err := s.checkCatalog(ctx, preview.CustomerID, preview.ProductID, preview.ProductVersionID); err != nil {
			return nil, err
		}
	}

	updated, err := s.licenses.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation(ctx, actorID, model.ActionUpdate, model.TargetLicense, id.String(), nil)
	s.syncAsync(updated)
	return updated, nil
}

func (s *LicenseService) Delete(ctx context.Context, actorID uint, id uuid.UUID) error {
	if err := s.licenses.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogOperation(ctx, actorID, model.ActionDelete, model.TargetLicense, id.String(), nil)
	s.removeAsync(id)
	return nil
}

// VerificationLogs 返回指定许可证的校验记录，最新的在前
func (s *LicenseService) VerificationLogs(ctx context.Context, id uuid.UUID, limit int) ([]model.LicenseVerificationLog, error) {
	if _, err := s.licenses.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByLicense(ctx, id, limit)
}

// Wait 等待所有后台同步任务结束
func (s *LicenseService) Wait() {
	s.pending.Wait()
}

func (s *LicenseService) checkCatalog(ctx context.Context, customerID, productID, versionID uuid.UUID) error {
	if _, err := s.catalog.GetCustomer(ctx, customerID); err != nil {
		return err
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	version, err := s.catalog.GetProductVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.ProductID != productID {
		return apperr.New(apperr.CodeValidation, "product version does not belong to product")
	}
	return nil
}

func validateLicense(l *model.License) error {
	switch {
	case !l.Type.IsValid():
		return apperr.New(apperr.CodeValidation, "invalid license type")
	case !l.Scope.IsValid():
		return apperr.New(apperr.CodeValidation, "license_scope must be international or local")
	case l.LicensingPeriod <= 0:
		return apperr.New(apperr.CodeValidation, "licensing_period must be positive")
	case l.GracePeriodDays < 0:
		return apperr.New(apperr.CodeValidation, "grace_period_days must not be negative")
	case l.MaxUsersAllowed != nil && *l.MaxUsersAllowed < 1:
		return apperr.New(apperr.CodeValidation, "max_users_allowed must be at least 1")
	case l.CurrentUsers < 0:
		return apperr.New(apperr.CodeValidation, "current_users must not be negative")
	}
	return nil
}

func (s *LicenseService) syncAsync(license *model.License) {
	if s.syncer == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := s.syncer.SyncLicense(ctx, license); err != nil {
			s.logg.Warn(s.logg.WithLicenseID(ctx, license.ID.String()), "failed to sync license to sheet", err)
		}
	}()
}

func (s *LicenseService) removeAsync(id uuid.UUID) {
	if s.syncer == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := s.syncer.RemoveLicense(ctx, id); err != nil {
			s.logg.Warn(s.logg.WithLicenseID(ctx, id.String()), "failed to remove license from sheet", err)
		}
	}()
}
