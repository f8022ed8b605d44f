package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LicenseType 是许可证限制类别的集合，按位存储
type LicenseType uint8

const (
	TypeDateBased LicenseType = 1 << iota
	TypeUserCountBased
	TypeMacBased
	TypeCountryBased

	TypeMixed = TypeDateBased | TypeUserCountBased | TypeMacBased | TypeCountryBased
)

var licenseTypeNames = []struct {
	tag  LicenseType
	name string
}{
	{TypeDateBased, "date_based"},
	{TypeUserCountBased, "user_count_based"},
	{TypeMacBased, "mac_based"},
	{TypeCountryBased, "country_based"},
}

// ParseLicenseType accepts a single tag name, "mixed", or a comma-separated list of tags.
func ParseLicenseType(value string) (LicenseType, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, fmt.Errorf("license type is empty")
	}
	if value == "mixed" {
		return TypeMixed, nil
	}

	var t LicenseType
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "mixed" {
			t |= TypeMixed
			continue
		}
		tag, ok := tagByName(part)
		if !ok {
			return 0, fmt.Errorf("unknown license type %q", part)
		}
		t |= tag
	}
	return t, nil
}

func tagByName(name string) (LicenseType, bool) {
	for _, entry := range licenseTypeNames {
		if entry.name == name {
			return entry.tag, true
		}
	}
	return 0, false
}

func (t LicenseType) Has(tag LicenseType) bool {
	return t&tag != 0
}

func (t LicenseType) IsValid() bool {
	return t != 0 && t&^TypeMixed == 0
}

// Tags 按固定顺序返回各类别名称
func (t LicenseType) Tags() []string {
	tags := make([]string, 0, len(licenseTypeNames))
	for _, entry := range licenseTypeNames {
		if t.Has(entry.tag) {
			tags = append(tags, entry.name)
		}
	}
	return tags
}

func (t LicenseType) String() string {
	if t == TypeMixed {
		return "mixed"
	}
	return strings.Join(t.Tags(), ",")
}

func (t LicenseType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LicenseType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLicenseType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type LicenseScope string

const (
	ScopeInternational LicenseScope = "international"
	ScopeLocal         LicenseScope = "local"
)

func (s LicenseScope) IsValid() bool {
	switch s {
	case ScopeInternational, ScopeLocal:
		return true
	}
	return false
}
