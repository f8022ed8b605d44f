package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type License struct {
	ID                    uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerID            uuid.UUID    `json:"customer_id" gorm:"type:uuid;not null;index"`
	ProductID             uuid.UUID    `json:"product_id" gorm:"type:uuid;not null;index"`
	ProductVersionID      uuid.UUID    `json:"product_version_id" gorm:"type:uuid;not null"`
	Type                  LicenseType  `json:"license_type" gorm:"column:license_type;not null"`
	Scope                 LicenseScope `json:"license_scope" gorm:"column:license_scope;not null;default:local"`
	LicensingPeriod       int          `json:"licensing_period" gorm:"not null"`
	RenewableAlertMessage string       `json:"renewable_alert_message"`
	GracePeriodDays       int          `json:"grace_period_days" gorm:"not null;default:0"`
	ExpiryDate            *time.Time   `json:"expiry_date"`
	MaxUsersAllowed       *int         `json:"max_users_allowed"`
	CurrentUsers          int          `json:"current_users" gorm:"not null;default:0"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`

	Customer         *Customer               `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	MacAddresses     []LicenseMacAddress     `json:"-" gorm:"foreignKey:LicenseID"`
	AllowedCountries []LicenseAllowedCountry `json:"-" gorm:"foreignKey:LicenseID"`
}

type LicenseMacAddress struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseID  uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	MacAddress string    `json:"mac_address" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

type LicenseAllowedCountry struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseID   uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	CountryCode string    `json:"country_code" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// SupportsSeats 只有按用户数计费且设置了上限的许可证才有席位计数
func (l *License) SupportsSeats() bool {
	return l.Type.Has(TypeUserCountBased) && l.MaxUsersAllowed != nil
}

func (l *License) MacList() []string {
	out := make([]string, 0, len(l.MacAddresses))
	for _, m := range l.MacAddresses {
		out = append(out, m.MacAddress)
	}
	return out
}

func (l *License) CountryList() []string {
	out := make([]string, 0, len(l.AllowedCountries))
	for _, c := range l.AllowedCountries {
		out = append(out, c.CountryCode)
	}
	return out
}

// SetMacAddresses 替换 MAC 白名单
func (l *License) SetMacAddresses(macs []string) {
	l.MacAddresses = make([]LicenseMacAddress, 0, len(macs))
	for _, mac := range macs {
		mac = strings.TrimSpace(mac)
		if mac == "" {
			continue
		}
		l.MacAddresses = append(l.MacAddresses, LicenseMacAddress{
			ID:         uuid.New(),
			LicenseID:  l.ID,
			MacAddress: mac,
		})
	}
}

// SetAllowedCountries 替换国家白名单
func (l *License) SetAllowedCountries(codes []string) {
	l.AllowedCountries = make([]LicenseAllowedCountry, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		l.AllowedCountries = append(l.AllowedCountries, LicenseAllowedCountry{
			ID:          uuid.New(),
			LicenseID:   l.ID,
			CountryCode: code,
		})
	}
}

func (l License) MarshalJSON() ([]byte, error) {
	type alias License
	return json.Marshal(struct {
		alias
		MacAddresses     []string `json:"mac_addresses"`
		AllowedCountries []string `json:"allowed_countries"`
	}{
		alias:            alias(l),
		MacAddresses:     l.MacList(),
		AllowedCountries: l.CountryList(),
	})
}

// LicensePatch 部分更新，nil 字段保持不变
type LicensePatch struct {
	CustomerID            *uuid.UUID
	ProductID             *uuid.UUID
	ProductVersionID      *uuid.UUID
	Type                  *LicenseType
	Scope                 *LicenseScope
	LicensingPeriod       *int
	RenewableAlertMessage *string
	GracePeriodDays       *int
	ExpiryDate            *time.Time
	MaxUsersAllowed       *int
	CurrentUsers          *int
	MacAddresses          *[]string
	AllowedCountries      *[]string
}

// Apply 把补丁写入 license；名单字段由调用方单独持久化
func (p LicensePatch) Apply(l *License) {
	if p.CustomerID != nil {
		l.CustomerID = *p.CustomerID
	}
	if p.ProductID != nil {
		l.ProductID = *p.ProductID
	}
	if p.ProductVersionID != nil {
		l.ProductVersionID = *p.ProductVersionID
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Scope != nil {
		l.Scope = *p.Scope
	}
	if p.LicensingPeriod != nil {
		l.LicensingPeriod = *p.LicensingPeriod
	}
	if p.RenewableAlertMessage != nil {
		l.RenewableAlertMessage = *p.RenewableAlertMessage
	}
	if p.GracePeriodDays != nil {
		l.GracePeriodDays = *p.GracePeriodDays
	}
	if p.ExpiryDate != nil {
		expiry := *p.ExpiryDate
		l.ExpiryDate = &expiry
	}
	if p.MaxUsersAllowed != nil {
		max := *p.MaxUsersAllowed
		l.MaxUsersAllowed = &max
	}
	if p.CurrentUsers != nil {
		l.CurrentUsers = *p.CurrentUsers
	}
	if p.MacAddresses != nil {
		l.SetMacAddresses(*p.MacAddresses)
	}
	if p.AllowedCountries != nil {
		l.SetAllowedCountries(*p.AllowedCountries)
	}
}

// SeatLimitMessage 席位已满时返回给客户端的提示
func SeatLimitMessage(max, current int) string {
	return fmt.Sprintf("User limit reached. License allows %d users, currently has %d.", max, current)
}

// LicenseFilter 列表查询条件
type LicenseFilter struct {
	CustomerID *uuid.UUID
	ProductID  *uuid.UUID
	Page       int
	PageSize   int
}

func (f LicenseFilter) Normalize() LicenseFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}
