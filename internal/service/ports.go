package service

import (
	"context"
	"time"

	"license-management-system/internal/model"

	"github.com/google/uuid"
)

// LicenseStore 校验和席位操作依赖的存储接口
type LicenseStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.License, error)
	Update(ctx context.Context, id uuid.UUID, patch model.LicensePatch) (*model.License, error)
	IncrementSeats(ctx context.Context, id uuid.UUID) (*model.License, error)
	DecrementSeats(ctx context.Context, id uuid.UUID) (*model.License, error)
	ResetSeats(ctx context.Context, id uuid.UUID) (*model.License, error)
}

// LicenseRepository 管理端需要的完整存储接口
type LicenseRepository interface {
	LicenseStore
	Create(ctx context.Context, license *model.License) (*model.License, error)
	List(ctx context.Context, filter model.LicenseFilter) ([]model.License, int64, error)
	All(ctx context.Context) ([]model.License, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type VerificationLogSink interface {
	Append(ctx context.Context, entry *model.LicenseVerificationLog) error
}

type VerificationLogReader interface {
	ListByLicense(ctx context.Context, licenseID uuid.UUID, limit int) ([]model.LicenseVerificationLog, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.LicenseVerificationLog, error)
}

type CatalogReader interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetProductVersion(ctx context.Context, id uuid.UUID) (*model.ProductVersion, error)
	ProductNames(ctx context.Context) (map[uuid.UUID]string, error)
}

// LicenseSyncer 把许可证变更推送到外部表格
type LicenseSyncer interface {
	SyncLicense(ctx context.Context, license *model.License) error
	RemoveLicense(ctx context.Context, id uuid.UUID) error
}

type OperationLogStore interface {
	Append(ctx context.Context, entry *model.OperationLog) error
	List(ctx context.Context, userID uint, page, pageSize int) ([]model.OperationLog, int64, error)
}
