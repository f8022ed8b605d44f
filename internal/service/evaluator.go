package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"license-management-system/internal/model"
)

const (
	day = 24 * time.Hour

	DefaultExpiryWarningDays = 30

	msgGraceEnded      = "License has expired and grace period has ended."
	msgMacNotAllowed   = "Device MAC address is not authorized to use this license."
	msgCountryNotValid = "This license is not valid in your country."
)

// Evaluator 根据许可证规则判定 valid / warning / expired，不做任何 I/O
type Evaluator struct {
	WarningDays int
}

func NewEvaluator(warningDays int) Evaluator {
	if warningDays < 0 {
		warningDays = DefaultExpiryWarningDays
	}
	return Evaluator{WarningDays: warningDays}
}

// Evaluate 按 expiry > seats > mac > country 的顺序收集错误和警告
func (e Evaluator) Evaluate(license *model.License, vc model.VerificationContext, now time.Time) model.VerificationResult {
	var errs, warnings []string
	result := model.VerificationResult{}

	if license.ExpiryDate != nil {
		expiry := *license.ExpiryDate
		expiresIn := ceilDays(expiry.Sub(now))
		result.ExpiresIn = &expiresIn

		if now.After(expiry) {
			graceEnd := expiry.AddDate(0, 0, license.GracePeriodDays)
			if !now.After(graceEnd) {
				remaining := license.GracePeriodDays - ceilDays(now.Sub(expiry))
				warnings = append(warnings, fmt.Sprintf("License has expired but is in grace period. Expires in %d days.", remaining))
			} else {
				errs = append(errs, msgGraceEnded)
			}
		} else if expiry.Sub(now) <= time.Duration(e.WarningDays)*day {
			msg := fmt.Sprintf("License will expire in %d days.", expiresIn)
			if alert := strings.TrimSpace(license.RenewableAlertMessage); alert != "" {
				msg = alert + " " + msg
			}
			warnings = append(warnings, msg)
		}
	}

	if license.SupportsSeats() {
		max := *license.MaxUsersAllowed
		current := license.CurrentUsers
		result.MaxUsersAllowed = &max
		result.CurrentUsers = &current

		if current >= max {
			if vc.AddSeat {
				errs = append(errs, model.SeatLimitMessage(max, current))
			} else {
				warnings = append(warnings, model.SeatLimitMessage(max, current))
			}
		}
	}

	if license.Type.Has(model.TypeMacBased) && vc.MacAddress != "" && len(license.MacAddresses) > 0 {
		if !containsMac(license.MacList(), vc.MacAddress) {
			errs = append(errs, msgMacNotAllowed)
		}
	}

	if license.Type.Has(model.TypeCountryBased) && vc.CountryCode != "" && len(license.AllowedCountries) > 0 {
		if !containsFold(license.CountryList(), vc.CountryCode) {
			errs = append(errs, msgCountryNotValid)
		}
	}

	result.IsValid = len(errs) == 0
	result.Warnings = warnings
	switch {
	case len(errs) > 0:
		result.Status = model.StatusExpired
	case len(warnings) > 0:
		result.Status = model.StatusWarning
	default:
		result.Status = model.StatusValid
	}
	if len(errs) > 0 {
		result.ErrorMessage = &errs[0]
	}
	if len(warnings) > 0 {
		result.WarningMessage = &warnings[0]
	}
	return result
}

// ShouldAddSeat 校验通过且请求占用席位时返回 true
func (e Evaluator) ShouldAddSeat(license *model.License, vc model.VerificationContext, result model.VerificationResult) bool {
	return result.IsValid && vc.AddSeat && license.SupportsSeats()
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

// NormalizeMac 统一大小写和分隔符
func NormalizeMac(mac string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(mac)), "-", ":")
}

func containsMac(allowed []string, mac string) bool {
	want := NormalizeMac(mac)
	for _, candidate := range allowed {
		if NormalizeMac(candidate) == want {
			return true
		}
	}
	return false
}

func containsFold(values []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), value) {
			return true
		}
	}
	return false
}
