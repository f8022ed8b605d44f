package database

import (
	"context"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogStore 只读访问客户与产品目录
type CatalogStore struct {
	db *gorm.DB
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := s.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "customer")
	}
	return &customer, nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "product")
	}
	return &product, nil
}

func (s *CatalogStore) GetProductVersion(ctx context.Context, id uuid.UUID) (*model.ProductVersion, error) {
	var version model.ProductVersion
	if err := s.db.WithContext(ctx).First(&version, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "product version")
	}
	return &version, nil
}

// ProductNames 返回 id 到产品名的映射
func (s *CatalogStore) ProductNames(ctx context.Context) (map[uuid.UUID]string, error) {
	var products []model.Product
	if err := s.db.WithContext(ctx).Select("id", "name").Find(&products).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load products")
	}
	names := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}
