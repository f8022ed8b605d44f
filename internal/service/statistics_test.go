package service

import (
	"context"
	"testing"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsCompute(t *testing.T) {
	catalog := newFakeCatalog()
	_, productID, _ := catalog.seed()

	valid := licenseWith(model.TypeDateBased, expiresAt(90*24*time.Hour))
	warning := licenseWith(model.TypeDateBased, expiresAt(5*24*time.Hour))
	expired := licenseWith(model.TypeMixed, expiresAt(-30*24*time.Hour))
	for _, l := range []*model.License{valid, warning, expired} {
		l.ProductID = productID
	}
	store := newFakeLicenseStore(valid, warning, expired)

	day1 := fixedNow.Add(-48 * time.Hour)
	day2 := fixedNow.Add(-24 * time.Hour)
	sink := &fakeLogSink{entries: []model.LicenseVerificationLog{
		{LicenseID: valid.ID, IsValid: true, CountryCode: "US", VerificationDate: day1},
		{LicenseID: valid.ID, IsValid: false, CountryCode: "DE", VerificationDate: day1.Add(time.Hour)},
		{LicenseID: warning.ID, IsValid: true, CountryCode: "US", VerificationDate: day2},
		{LicenseID: warning.ID, IsValid: true, VerificationDate: fixedNow.Add(-60 * 24 * time.Hour)},
	}}

	svc, err := NewStatisticsService(store, catalog, sink, NewEvaluator(30), fixedClock())
	require.NoError(t, err)

	stats, err := svc.Compute(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalLicenses)
	assert.Equal(t, int64(1), stats.ValidLicenses)
	assert.Equal(t, int64(1), stats.WarningLicenses)
	assert.Equal(t, int64(1), stats.ExpiredLicenses)
	assert.Equal(t, 3, stats.LicensesByProduct["Trader"])
	assert.Equal(t, 2, stats.LicensesByType["date_based"])
	assert.Equal(t, 1, stats.LicensesByType["mixed"])

	assert.Equal(t, int64(3), stats.TotalVerifications)
	assert.Equal(t, int64(1), stats.FailedVerifications)
	assert.InDelta(t, 2.0/3.0, stats.GetSuccessRate(), 0.0001)
	assert.Equal(t, 2, stats.GetUsageByCountry("US"))
	assert.Equal(t, 1, stats.GetUsageByCountry("DE"))

	require.Len(t, stats.DailyVerifications, 2)
	first := stats.GetDailyVerificationsByDate(day1)
	require.NotNil(t, first)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 1, first.Invalid)
	assert.Equal(t, day2.Format("2006-01-02"), stats.DailyVerifications[1].Date)
}

func TestStatisticsRejectsInvertedRange(t *testing.T) {
	svc, err := NewStatisticsService(newFakeLicenseStore(), newFakeCatalog(), &fakeLogSink{}, NewEvaluator(30), fixedClock())
	require.NoError(t, err)

	_, err = svc.Compute(context.Background(), fixedNow, fixedNow.Add(-time.Hour))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
