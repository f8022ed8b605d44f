package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"license-management-system/internal/config"
	"license-management-system/internal/logger"
	"license-management-system/internal/model"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetLastColumn   = "K"
	valueInputOption  = "USER_ENTERED"
	sheetFirstDataRow = 2
)

var sheetHeader = []interface{}{
	"license_id", "customer_id", "product_id", "product_version_id", "license_type",
	"license_scope", "expiry_date", "grace_period_days", "max_users_allowed", "current_users", "updated_at",
}

// valuesAPI 是 Sheets values 接口的最小子集
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]interface{}, error)
	Update(ctx context.Context, rng string, rows [][]interface{}) error
	Append(ctx context.Context, rng string, rows [][]interface{}) error
	Clear(ctx context.Context, rng string) error
}

type googleValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (g *googleValues) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (g *googleValues) Clear(ctx context.Context, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// SheetSyncService 把许可证行同步到 Google Sheet，第一列为许可证 ID
type SheetSyncService struct {
	values    valuesAPI
	sheetName string
	logg      *logger.Logger

	mu sync.Mutex
}

// NewSheetSyncService 未启用时返回 nil, nil
func NewSheetSyncService(ctx context.Context, cfg config.SheetsConfig, logg *logger.Logger) (*SheetSyncService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// 读取凭证文件
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading sheets credentials: %w", err)
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("loading sheets credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	// 先检查工作表是否存在
	spreadsheet, err := srv.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("loading spreadsheet: %w", err)
	}
	sheetExists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == cfg.SheetName {
			sheetExists = true
			break
		}
	}
	if !sheetExists {
		return nil, fmt.Errorf("sheet %q does not exist", cfg.SheetName)
	}

	return newSheetSync(&googleValues{svc: srv, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName, logg), nil
}

func newSheetSync(values valuesAPI, sheetName string, logg *logger.Logger) *SheetSyncService {
	if logg == nil {
		logg = logger.Nop()
	}
	return &SheetSyncService{values: values, sheetName: sheetName, logg: logg}
}

// SyncLicense 已存在则更新该行，否则追加
func (s *SheetSyncService) SyncLicense(ctx context.Context, license *model.License) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.rowIndex(ctx)
	if err != nil {
		return err
	}
	row := [][]interface{}{licenseRow(license)}
	if n, ok := index[license.ID.String()]; ok {
		err = s.values.Update(ctx, s.rowRange(n), row)
	} else {
		err = s.values.Append(ctx, s.dataRange(), row)
	}
	if err != nil {
		return fmt.Errorf("syncing license %s to sheet: %w", license.ID, err)
	}

	s.logg.Debug(s.logg.WithLicenseID(ctx, license.ID.String()), "license synced to sheet")
	return nil
}

// RemoveLicense 清空对应行
func (s *SheetSyncService) RemoveLicense(ctx context.Context, id uuid.UUID) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.rowIndex(ctx)
	if err != nil {
		return err
	}
	n, ok := index[id.String()]
	if !ok {
		return nil
	}
	if err := s.values.Clear(ctx, s.rowRange(n)); err != nil {
		return fmt.Errorf("clearing license %s from sheet: %w", id, err)
	}
	return nil
}

// ExportAll 写表头并批量同步全部许可证，逐行错误合并返回
func (s *SheetSyncService) ExportAll(ctx context.Context, licenses []model.License) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.values.Update(ctx, s.rowRange(1), [][]interface{}{sheetHeader}); err != nil {
		return fmt.Errorf("writing sheet header: %w", err)
	}

	index, err := s.rowIndex(ctx)
	if err != nil {
		return err
	}

	var (
		errs    error
		missing [][]interface{}
	)
	for i := range licenses {
		license := &licenses[i]
		if n, ok := index[license.ID.String()]; ok {
			errs = multierr.Append(errs, s.values.Update(ctx, s.rowRange(n), [][]interface{}{licenseRow(license)}))
			continue
		}
		missing = append(missing, licenseRow(license))
	}
	if len(missing) > 0 {
		errs = multierr.Append(errs, s.values.Append(ctx, s.dataRange(), missing))
	}

	if errs == nil {
		s.logg.Info(s.logg.WithField(ctx, "count", len(licenses)), "exported licenses to sheet")
	}
	return errs
}

// rowIndex 返回许可证 ID 到行号的映射
func (s *SheetSyncService) rowIndex(ctx context.Context) (map[string]int, error) {
	rows, err := s.values.Get(ctx, fmt.Sprintf("%s!A%d:A", s.sheetName, sheetFirstDataRow))
	if err != nil {
		return nil, fmt.Errorf("reading sheet ids: %w", err)
	}
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" {
			index[id] = i + sheetFirstDataRow
		}
	}
	return index, nil
}

func (s *SheetSyncService) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", s.sheetName, n, sheetLastColumn, n)
}

func (s *SheetSyncService) dataRange() string {
	return fmt.Sprintf("%s!A%d:%s", s.sheetName, sheetFirstDataRow, sheetLastColumn)
}

func licenseRow(l *model.License) []interface{} {
	expiry := ""
	if l.ExpiryDate != nil {
		expiry = l.ExpiryDate.UTC().Format(time.RFC3339)
	}
	maxUsers := ""
	if l.MaxUsersAllowed != nil {
		maxUsers = strconv.Itoa(*l.MaxUsersAllowed)
	}
	return []interface{}{
		l.ID.String(),
		l.CustomerID.String(),
		l.ProductID.String(),
		l.ProductVersionID.String(),
		l.Type.String(),
		string(l.Scope),
		expiry,
		l.GracePeriodDays,
		maxUsers,
		l.CurrentUsers,
		l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
