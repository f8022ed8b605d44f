package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"license-management-system/internal/config"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValues struct {
	ids       [][]interface{}
	updates   map[string][][]interface{}
	appends   [][]interface{}
	cleared   []string
	appendErr error
}

func newFakeValues(ids ...string) *fakeValues {
	f := &fakeValues{updates: map[string][][]interface{}{}}
	for _, id := range ids {
		f.ids = append(f.ids, []interface{}{id})
	}
	return f
}

func (f *fakeValues) Get(context.Context, string) ([][]interface{}, error) {
	return f.ids, nil
}

func (f *fakeValues) Update(_ context.Context, rng string, rows [][]interface{}) error {
	f.updates[rng] = rows
	return nil
}

func (f *fakeValues) Append(_ context.Context, _ string, rows [][]interface{}) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, rows...)
	return nil
}

func (f *fakeValues) Clear(_ context.Context, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func sheetLicense() *model.License {
	return &model.License{
		ID:              uuid.New(),
		Type:            model.TypeUserCountBased | model.TypeMacBased,
		Scope:           model.ScopeInternational,
		ExpiryDate:      timePtr(fixedNow),
		MaxUsersAllowed: intPtr(5),
		CurrentUsers:    2,
		UpdatedAt:       fixedNow,
	}
}

func TestLicenseRow(t *testing.T) {
	l := sheetLicense()
	row := licenseRow(l)

	require.Len(t, row, len(sheetHeader))
	assert.Equal(t, l.ID.String(), row[0])
	assert.Equal(t, "user_count_based,mac_based", row[4])
	assert.Equal(t, "international", row[5])
	assert.Equal(t, fixedNow.Format(time.RFC3339), row[6])
	assert.Equal(t, "5", row[8])
	assert.Equal(t, 2, row[9])

	l.ExpiryDate = nil
	l.MaxUsersAllowed = nil
	row = licenseRow(l)
	assert.Equal(t, "", row[6])
	assert.Equal(t, "", row[8])
}

func TestSheetSyncUpdatesExistingRow(t *testing.T) {
	l := sheetLicense()
	values := newFakeValues("other", l.ID.String())
	sync := newSheetSync(values, "Licenses", nil)

	require.NoError(t, sync.SyncLicense(context.Background(), l))
	assert.Contains(t, values.updates, "Licenses!A3:K3")
	assert.Empty(t, values.appends)
}

func TestSheetSyncAppendsNewRow(t *testing.T) {
	l := sheetLicense()
	values := newFakeValues("other")
	sync := newSheetSync(values, "Licenses", nil)

	require.NoError(t, sync.SyncLicense(context.Background(), l))
	require.Len(t, values.appends, 1)
	assert.Equal(t, l.ID.String(), values.appends[0][0])
}

func TestSheetSyncRemove(t *testing.T) {
	l := sheetLicense()
	values := newFakeValues(l.ID.String())
	sync := newSheetSync(values, "Licenses", nil)

	require.NoError(t, sync.RemoveLicense(context.Background(), l.ID))
	require.NoError(t, sync.RemoveLicense(context.Background(), uuid.New()))
	assert.Equal(t, []string{"Licenses!A2:K2"}, values.cleared)
}

func TestSheetExportAll(t *testing.T) {
	existing, fresh := sheetLicense(), sheetLicense()
	values := newFakeValues(existing.ID.String())
	sync := newSheetSync(values, "Licenses", nil)

	err := sync.ExportAll(context.Background(), []model.License{*existing, *fresh})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{sheetHeader}, values.updates["Licenses!A1:K1"])
	assert.Contains(t, values.updates, "Licenses!A2:K2")
	require.Len(t, values.appends, 1)
	assert.Equal(t, fresh.ID.String(), values.appends[0][0])

	values.appendErr = errors.New("quota exceeded")
	err = sync.ExportAll(context.Background(), []model.License{*sheetLicense()})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "quota exceeded"))
}

func TestSheetSyncDisabled(t *testing.T) {
	svc, err := NewSheetSyncService(context.Background(), config.SheetsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, svc)
	assert.NoError(t, svc.SyncLicense(context.Background(), sheetLicense()))
	assert.NoError(t, svc.ExportAll(context.Background(), nil))
}
