package service

import (
	"context"
	"sync"
	"testing"

	"license-management-system/internal/apperr"
	"license-management-system/internal/database"
	"license-management-system/internal/metrics"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, store LicenseStore, sink VerificationLogSink, reg *prometheus.Registry) *VerificationService {
	t.Helper()
	var m *metrics.LicenseMetrics
	if reg != nil {
		m = metrics.NewLicenseMetrics(reg)
	}
	svc, err := NewVerificationService(VerificationParams{
		Licenses:  store,
		Logs:      sink,
		Evaluator: NewEvaluator(30),
		Clock:     fixedClock(),
		Metrics:   m,
	})
	require.NoError(t, err)
	return svc
}

func TestNewVerificationServiceRequiresDeps(t *testing.T) {
	_, err := NewVerificationService(VerificationParams{Logs: &fakeLogSink{}})
	assert.Error(t, err)
	_, err = NewVerificationService(VerificationParams{Licenses: newFakeLicenseStore()})
	assert.Error(t, err)
}

func TestVerifyAddSeatIncrementsInSameResponse(t *testing.T) {
	license := licenseWith(model.TypeUserCountBased, seats(1, 3))
	store := newFakeLicenseStore(license)
	sink := &fakeLogSink{}
	reg := prometheus.NewRegistry()
	svc := newTestVerifier(t, store, sink, reg)

	got, err := svc.Verify(context.Background(), VerifyRequest{
		LicenseID: license.ID,
		Context:   model.VerificationContext{AddSeat: true},
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)

	assert.True(t, got.IsValid)
	assert.Equal(t, model.StatusValid, got.Status)
	require.NotNil(t, got.CurrentUsers)
	assert.Equal(t, 2, *got.CurrentUsers)
	assert.Equal(t, 3, *got.MaxUsersAllowed)

	stored, _ := store.Get(context.Background(), license.ID)
	assert.Equal(t, 2, stored.CurrentUsers)

	require.Len(t, sink.entries, 1)
	assert.True(t, sink.entries[0].IsValid)
	assert.Equal(t, "10.0.0.1", sink.entries[0].IPAddress)
	assert.Equal(t, fixedNow, sink.entries[0].VerificationDate)
	assert.Equal(t, float64(1), counterValue(reg, "license_verifications_total", map[string]string{"status": "valid"}))
	assert.Equal(t, float64(1), counterValue(reg, "license_seat_operations_total", map[string]string{"result": "ok"}))
}

func TestVerifyDoesNotIncrementWhenInvalid(t *testing.T) {
	license := licenseWith(model.TypeMixed, seats(0, 3), macs("AA:BB:CC:DD:EE:FF"))
	store := newFakeLicenseStore(license)
	sink := &fakeLogSink{}
	svc := newTestVerifier(t, store, sink, nil)

	got, err := svc.Verify(context.Background(), VerifyRequest{
		LicenseID: license.ID,
		Context:   model.VerificationContext{AddSeat: true, MacAddress: "11:22:33:44:55:66", CountryCode: "us"},
	})
	require.NoError(t, err)

	assert.False(t, got.IsValid)
	assert.Zero(t, store.incrCalls)
	require.Len(t, sink.entries, 1)
	assert.False(t, sink.entries[0].IsValid)
	assert.Equal(t, "US", sink.entries[0].CountryCode)
	assert.Equal(t, "Device MAC address is not authorized to use this license.", sink.entries[0].Message)
}

func TestVerifyLostSeatRaceBecomesLimitError(t *testing.T) {
	license := licenseWith(model.TypeUserCountBased, seats(2, 3))
	store := newFakeLicenseStore(license)
	store.incrErr = apperr.New(apperr.CodeLimitExceeded, model.SeatLimitMessage(3, 3)).
		WithDetails(map[string]int{"current_users": 3, "max_users_allowed": 3})
	reg := prometheus.NewRegistry()
	svc := newTestVerifier(t, store, &fakeLogSink{}, reg)

	got, err := svc.Verify(context.Background(), VerifyRequest{
		LicenseID: license.ID,
		Context:   model.VerificationContext{AddSeat: true},
	})
	require.NoError(t, err)

	assert.False(t, got.IsValid)
	assert.Equal(t, model.StatusExpired, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "User limit reached. License allows 3 users, currently has 3.", *got.ErrorMessage)
	assert.Equal(t, 3, *got.CurrentUsers)
	assert.Equal(t, float64(1), counterValue(reg, "license_seat_operations_total", map[string]string{"result": "limit"}))
	assert.Equal(t, float64(1), counterValue(reg, "license_verifications_total", map[string]string{"status": "expired"}))
}

func TestVerifyIncrementFailurePropagates(t *testing.T) {
	license := licenseWith(model.TypeUserCountBased, seats(0, 3))
	store := newFakeLicenseStore(license)
	store.incrErr = apperr.New(apperr.CodeInternal, "db down")
	sink := &fakeLogSink{}
	svc := newTestVerifier(t, store, sink, nil)

	_, err := svc.Verify(context.Background(), VerifyRequest{
		LicenseID: license.ID,
		Context:   model.VerificationContext{AddSeat: true},
	})
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
	assert.Empty(t, sink.entries)
}

func TestVerifyLogFailureIsNotFatal(t *testing.T) {
	license := licenseWith(model.TypeDateBased)
	store := newFakeLicenseStore(license)
	reg := prometheus.NewRegistry()
	svc := newTestVerifier(t, store, &fakeLogSink{err: errSinkDown}, reg)

	got, err := svc.Verify(context.Background(), VerifyRequest{LicenseID: license.ID})
	require.NoError(t, err)
	assert.True(t, got.IsValid)
	assert.Equal(t, float64(1), counterValue(reg, "license_verification_log_failures_total", nil))
}

func TestVerifyErrors(t *testing.T) {
	sink := &fakeLogSink{}
	svc := newTestVerifier(t, newFakeLicenseStore(), sink, nil)

	tests := []struct {
		name     string
		id       uuid.UUID
		wantCode apperr.Code
	}{
		{name: "missing_id", id: uuid.Nil, wantCode: apperr.CodeValidation},
		{name: "unknown_license", id: uuid.New(), wantCode: apperr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), VerifyRequest{LicenseID: tt.id})
			assert.True(t, apperr.Is(err, tt.wantCode))
		})
	}
	assert.Empty(t, sink.entries)
}

func TestVerifyConcurrentAddSeatNeverExceedsMax(t *testing.T) {
	db := database.InitTestDB()
	defer database.CleanTestDB(db)
	ctx := context.Background()

	customer := model.Customer{Name: "Acme"}
	require.NoError(t, db.Create(&customer).Error)
	product := model.Product{Name: "Trader"}
	require.NoError(t, db.Create(&product).Error)
	version := model.ProductVersion{ProductID: product.ID, Version: "1.0", ReleaseDate: fixedNow}
	require.NoError(t, db.Create(&version).Error)

	store := database.NewLicenseStore(db)
	license, err := store.Create(ctx, &model.License{
		CustomerID:       customer.ID,
		ProductID:        product.ID,
		ProductVersionID: version.ID,
		Type:             model.TypeUserCountBased,
		Scope:            model.ScopeLocal,
		LicensingPeriod:  365,
		MaxUsersAllowed:  intPtr(4),
	})
	require.NoError(t, err)

	svc := newTestVerifier(t, store, database.NewVerificationLogStore(db), nil)

	const clients = 12
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		valid int
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Verify(ctx, VerifyRequest{
				LicenseID: license.ID,
				Context:   model.VerificationContext{AddSeat: true},
			})
			if err != nil {
				t.Errorf("verify: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if got.IsValid {
				valid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, valid)
	reloaded, err := store.Get(ctx, license.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.CurrentUsers)

	logs, err := database.NewVerificationLogStore(db).ListByLicense(ctx, license.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, clients)
}
