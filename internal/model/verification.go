package model

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	StatusValid   VerificationStatus = "valid"
	StatusWarning VerificationStatus = "warning"
	StatusExpired VerificationStatus = "expired"
)

// VerificationContext 客户端在校验时提供的信息
type VerificationContext struct {
	MacAddress  string
	CountryCode string
	AddSeat     bool
}

type VerificationResult struct {
	IsValid         bool               `json:"is_valid"`
	Status          VerificationStatus `json:"status"`
	WarningMessage  *string            `json:"warning_message"`
	ErrorMessage    *string            `json:"error_message"`
	Warnings        []string           `json:"warnings,omitempty"`
	ExpiresIn       *int               `json:"expires_in"`
	CurrentUsers    *int               `json:"current_users,omitempty"`
	MaxUsersAllowed *int               `json:"max_users_allowed,omitempty"`
}

// Message 返回写入校验日志的消息，错误优先
func (r VerificationResult) Message() string {
	if r.ErrorMessage != nil {
		return *r.ErrorMessage
	}
	if r.WarningMessage != nil {
		return *r.WarningMessage
	}
	return ""
}

type LicenseVerificationLog struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseID        uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	IsValid          bool      `json:"is_valid" gorm:"not null"`
	Status           string    `json:"status"`
	IPAddress        string    `json:"ip_address"`
	MacAddress       string    `json:"mac_address"`
	CountryCode      string    `json:"country_code"`
	DeviceInfo       string    `json:"device_info"`
	Message          string    `json:"message"`
	VerificationDate time.Time `json:"verification_date" gorm:"not null;index"`
	CreatedAt        time.Time `json:"created_at"`
}
