package model

import "time"

// DailyVerifications 每日校验统计
type DailyVerifications struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Valid   int    `json:"valid"`
	Invalid int    `json:"invalid"`
}

// LicenseStatistics 许可证统计信息
type LicenseStatistics struct {
	From                time.Time            `json:"from"`
	To                  time.Time            `json:"to"`
	TotalLicenses       int64                `json:"total_licenses"`
	ValidLicenses       int64                `json:"valid_licenses"`
	WarningLicenses     int64                `json:"warning_licenses"`
	ExpiredLicenses     int64                `json:"expired_licenses"`
	LicensesByProduct   map[string]int       `json:"licenses_by_product"`
	LicensesByType      map[string]int       `json:"licenses_by_type"`
	TotalVerifications  int64                `json:"total_verifications"`
	FailedVerifications int64                `json:"failed_verifications"`
	DailyVerifications  []DailyVerifications `json:"daily_verifications"`
	UsageByCountry      map[string]int       `json:"usage_by_country"`
}

// GetSuccessRate 计算校验成功率
func (ls *LicenseStatistics) GetSuccessRate() float64 {
	if ls.TotalVerifications == 0 {
		return 0
	}
	return float64(ls.TotalVerifications-ls.FailedVerifications) / float64(ls.TotalVerifications)
}

// GetUsageByCountry 获取指定国家的校验次数
func (ls *LicenseStatistics) GetUsageByCountry(country string) int {
	if count, ok := ls.UsageByCountry[country]; ok {
		return count
	}
	return 0
}

// GetDailyVerificationsByDate 获取指定日期的校验统计
func (ls *LicenseStatistics) GetDailyVerificationsByDate(date time.Time) *DailyVerifications {
	key := date.UTC().Format("2006-01-02")
	for i := range ls.DailyVerifications {
		if ls.DailyVerifications[i].Date == key {
			return &ls.DailyVerifications[i]
		}
	}
	return nil
}
