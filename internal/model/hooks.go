package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (l *License) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

func (m *LicenseMacAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

func (c *LicenseAllowedCountry) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (v *LicenseVerificationLog) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (v *ProductVersion) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
