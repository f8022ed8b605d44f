package database

import (
	"testing"
	"time"

	"license-management-system/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type catalogFixture struct {
	customer model.Customer
	product  model.Product
	version  model.ProductVersion
}

func seedCatalog(t *testing.T, db *gorm.DB) catalogFixture {
	t.Helper()
	f := catalogFixture{
		customer: model.Customer{Name: "Acme", Country: "US"},
		product:  model.Product{Name: "Trader"},
	}
	require.NoError(t, db.Create(&f.customer).Error)
	require.NoError(t, db.Create(&f.product).Error)
	f.version = model.ProductVersion{ProductID: f.product.ID, Version: "1.0.0", ReleaseDate: time.Now()}
	require.NoError(t, db.Create(&f.version).Error)
	return f
}

func (f catalogFixture) license(t model.LicenseType) *model.License {
	return &model.License{
		CustomerID:       f.customer.ID,
		ProductID:        f.product.ID,
		ProductVersionID: f.version.ID,
		Type:             t,
		Scope:            model.ScopeLocal,
		LicensingPeriod:  365,
	}
}

func intPtr(v int) *int {
	return &v
}
