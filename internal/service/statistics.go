package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/model"
)

const defaultStatisticsWindow = 30 * day

type licenseLister interface {
	All(ctx context.Context) ([]model.License, error)
}

// StatisticsService 汇总许可证状态和校验日志
type StatisticsService struct {
	licenses  licenseLister
	catalog   CatalogReader
	logs      VerificationLogReader
	evaluator Evaluator
	clock     Clock
}

func NewStatisticsService(licenses licenseLister, catalog CatalogReader, logs VerificationLogReader, evaluator Evaluator, clock Clock) (*StatisticsService, error) {
	if licenses == nil || catalog == nil || logs == nil {
		return nil, errors.New("statistics dependencies required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatisticsService{
		licenses:  licenses,
		catalog:   catalog,
		logs:      logs,
		evaluator: evaluator,
		clock:     clock,
	}, nil
}

// Compute 零值的 from / to 默认取最近 30 天
func (s *StatisticsService) Compute(ctx context.Context, from, to time.Time) (*model.LicenseStatistics, error) {
	now := s.clock.Now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-defaultStatisticsWindow)
	}
	if !from.Before(to) {
		return nil, apperr.New(apperr.CodeValidation, "start_date must be before end_date")
	}

	stats := &model.LicenseStatistics{
		From:               from,
		To:                 to,
		LicensesByProduct:  make(map[string]int),
		LicensesByType:     make(map[string]int),
		UsageByCountry:     make(map[string]int),
		DailyVerifications: make([]model.DailyVerifications, 0),
	}

	licenses, err := s.licenses.All(ctx)
	if err != nil {
		return nil, err
	}
	productNames, err := s.catalog.ProductNames(ctx)
	if err != nil {
		return nil, err
	}

	for i := range licenses {
		license := &licenses[i]
		stats.TotalLicenses++

		// 按当前时间评估，不占用席位
		result := s.evaluator.Evaluate(license, model.VerificationContext{}, now)
		switch result.Status {
		case model.StatusValid:
			stats.ValidLicenses++
		case model.StatusWarning:
			stats.WarningLicenses++
		case model.StatusExpired:
			stats.ExpiredLicenses++
		}

		name, ok := productNames[license.ProductID]
		if !ok {
			name = license.ProductID.String()
		}
		stats.LicensesByProduct[name]++
		stats.LicensesByType[license.Type.String()]++
	}

	logs, err := s.logs.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	daily := make(map[string]*model.DailyVerifications)
	for _, entry := range logs {
		stats.TotalVerifications++
		if !entry.IsValid {
			stats.FailedVerifications++
		}
		if entry.CountryCode != "" {
			stats.UsageByCountry[entry.CountryCode]++
		}

		key := entry.VerificationDate.UTC().Format("2006-01-02")
		bucket, ok := daily[key]
		if !ok {
			bucket = &model.DailyVerifications{Date: key}
			daily[key] = bucket
		}
		bucket.Total++
		if entry.IsValid {
			bucket.Valid++
		} else {
			bucket.Invalid++
		}
	}
	for _, bucket := range daily {
		stats.DailyVerifications = append(stats.DailyVerifications, *bucket)
	}
	sort.Slice(stats.DailyVerifications, func(i, j int) bool {
		return stats.DailyVerifications[i].Date < stats.DailyVerifications[j].Date
	})

	return stats, nil
}
