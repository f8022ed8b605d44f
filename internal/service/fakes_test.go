package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func intPtr(v int) *int {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

type fakeLicenseStore struct {
	mu        sync.Mutex
	licenses  map[uuid.UUID]*model.License
	incrErr   error
	getCalls  int
	incrCalls int
}

func newFakeLicenseStore(licenses ...*model.License) *fakeLicenseStore {
	store := &fakeLicenseStore{licenses: map[uuid.UUID]*model.License{}}
	for _, l := range licenses {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		store.licenses[l.ID] = l
	}
	return store
}

func (f *fakeLicenseStore) clone(l *model.License) *model.License {
	c := *l
	c.MacAddresses = append([]model.LicenseMacAddress(nil), l.MacAddresses...)
	c.AllowedCountries = append([]model.LicenseAllowedCountry(nil), l.AllowedCountries...)
	return &c
}

func (f *fakeLicenseStore) Get(_ context.Context, id uuid.UUID) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	l, ok := f.licenses[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "license not found")
	}
	return f.clone(l), nil
}

func (f *fakeLicenseStore) Update(_ context.Context, id uuid.UUID, patch model.LicensePatch) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.licenses[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "license not found")
	}
	patch.Apply(l)
	return f.clone(l), nil
}

func (f *fakeLicenseStore) seat(id uuid.UUID) (*model.License, error) {
	l, ok := f.licenses[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "license not found")
	}
	if !l.SupportsSeats() {
		return nil, apperr.New(apperr.CodeUnsupported, "license does not track user seats")
	}
	return l, nil
}

func (f *fakeLicenseStore) IncrementSeats(_ context.Context, id uuid.UUID) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrCalls++
	if f.incrErr != nil {
		return nil, f.incrErr
	}
	l, err := f.seat(id)
	if err != nil {
		return nil, err
	}
	if l.CurrentUsers >= *l.MaxUsersAllowed {
		return nil, apperr.New(apperr.CodeLimitExceeded, model.SeatLimitMessage(*l.MaxUsersAllowed, l.CurrentUsers)).
			WithDetails(map[string]int{"current_users": l.CurrentUsers, "max_users_allowed": *l.MaxUsersAllowed})
	}
	l.CurrentUsers++
	return f.clone(l), nil
}

func (f *fakeLicenseStore) DecrementSeats(_ context.Context, id uuid.UUID) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, err := f.seat(id)
	if err != nil {
		return nil, err
	}
	if l.CurrentUsers > 0 {
		l.CurrentUsers--
	}
	return f.clone(l), nil
}

func (f *fakeLicenseStore) ResetSeats(_ context.Context, id uuid.UUID) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, err := f.seat(id)
	if err != nil {
		return nil, err
	}
	l.CurrentUsers = 0
	return f.clone(l), nil
}

func (f *fakeLicenseStore) Create(_ context.Context, l *model.License) (*model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	f.licenses[l.ID] = l
	return f.clone(l), nil
}

func (f *fakeLicenseStore) List(_ context.Context, _ model.LicenseFilter) ([]model.License, int64, error) {
	all, _ := f.All(context.Background())
	return all, int64(len(all)), nil
}

func (f *fakeLicenseStore) All(context.Context) ([]model.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.License, 0, len(f.licenses))
	for _, l := range f.licenses {
		out = append(out, *f.clone(l))
	}
	return out, nil
}

func (f *fakeLicenseStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.licenses[id]; !ok {
		return apperr.New(apperr.CodeNotFound, "license not found")
	}
	delete(f.licenses, id)
	return nil
}

type fakeLogSink struct {
	mu      sync.Mutex
	entries []model.LicenseVerificationLog
	err     error
}

func (f *fakeLogSink) Append(_ context.Context, entry *model.LicenseVerificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogSink) ListByLicense(_ context.Context, id uuid.UUID, _ int) ([]model.LicenseVerificationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LicenseVerificationLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].LicenseID == id {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLogSink) ListBetween(_ context.Context, from, to time.Time) ([]model.LicenseVerificationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LicenseVerificationLog
	for _, e := range f.entries {
		if !e.VerificationDate.Before(from) && e.VerificationDate.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	customers map[uuid.UUID]model.Customer
	products  map[uuid.UUID]model.Product
	versions  map[uuid.UUID]model.ProductVersion
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		customers: map[uuid.UUID]model.Customer{},
		products:  map[uuid.UUID]model.Product{},
		versions:  map[uuid.UUID]model.ProductVersion{},
	}
}

// seed 创建一组客户、产品和版本
func (f *fakeCatalog) seed() (customerID, productID, versionID uuid.UUID) {
	customerID, productID, versionID = uuid.New(), uuid.New(), uuid.New()
	f.customers[customerID] = model.Customer{ID: customerID, Name: "Acme"}
	f.products[productID] = model.Product{ID: productID, Name: "Trader"}
	f.versions[versionID] = model.ProductVersion{ID: versionID, ProductID: productID, Version: "1.0"}
	return customerID, productID, versionID
}

func (f *fakeCatalog) GetCustomer(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "customer not found")
	}
	return &c, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "product not found")
	}
	return &p, nil
}

func (f *fakeCatalog) GetProductVersion(_ context.Context, id uuid.UUID) (*model.ProductVersion, error) {
	v, ok := f.versions[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "product version not found")
	}
	return &v, nil
}

func (f *fakeCatalog) ProductNames(context.Context) (map[uuid.UUID]string, error) {
	names := map[uuid.UUID]string{}
	for id, p := range f.products {
		names[id] = p.Name
	}
	return names, nil
}

type fakeSyncer struct {
	synced  chan uuid.UUID
	removed chan uuid.UUID
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{synced: make(chan uuid.UUID, 10), removed: make(chan uuid.UUID, 10)}
}

func (f *fakeSyncer) SyncLicense(_ context.Context, l *model.License) error {
	f.synced <- l.ID
	return nil
}

func (f *fakeSyncer) RemoveLicense(_ context.Context, id uuid.UUID) error {
	f.removed <- id
	return nil
}

type fakeOperationLogs struct {
	mu      sync.Mutex
	entries []model.OperationLog
	err     error
}

func (f *fakeOperationLogs) Append(_ context.Context, entry *model.OperationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeOperationLogs) List(_ context.Context, userID uint, _, _ int) ([]model.OperationLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.OperationLog
	for _, e := range f.entries {
		if userID == 0 || e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOperationLogs) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// counterValue 从 registry 中读取计数器的合计值
func counterValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

var errSinkDown = errors.New("sink unavailable")
