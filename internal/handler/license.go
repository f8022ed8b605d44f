package handler

import (
	"context"
	"strings"

	"license-management-system/internal/apperr"
	"license-management-system/internal/middleware"
	"license-management-system/internal/model"
	"license-management-system/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type createLicenseRequest struct {
	CustomerID            string    `json:"customer_id" validate:"omitempty,uuid"`
	ProductID             string    `json:"product_id" validate:"omitempty,uuid"`
	ProductVersionID      string    `json:"product_version_id" validate:"omitempty,uuid"`
	LicenseType           string    `json:"license_type"`
	LicenseScope          string    `json:"license_scope" validate:"omitempty,oneof=international local"`
	LicensingPeriod       *int      `json:"licensing_period" validate:"omitempty,gte=1"`
	RenewableAlertMessage string    `json:"renewable_alert_message"`
	GracePeriodDays       int       `json:"grace_period_days" validate:"gte=0"`
	ExpiryDate            *flexTime `json:"expiry_date"`
	MaxUsersAllowed       *int      `json:"max_users_allowed" validate:"omitempty,gte=1"`
	MacAddresses          []string  `json:"mac_addresses" validate:"omitempty,dive,mac"`
	AllowedCountries      []string  `json:"allowed_countries" validate:"omitempty,dive,country"`
}

// toInput 缺失的必填字段保持零值，由服务层统一报错
func (r createLicenseRequest) toInput() (service.CreateLicenseInput, error) {
	var licenseType model.LicenseType
	if strings.TrimSpace(r.LicenseType) != "" {
		parsed, err := model.ParseLicenseType(r.LicenseType)
		if err != nil {
			return service.CreateLicenseInput{}, invalidLicenseType(err)
		}
		licenseType = parsed
	}
	return service.CreateLicenseInput{
		CustomerID:            uuidOrNil(r.CustomerID),
		ProductID:             uuidOrNil(r.ProductID),
		ProductVersionID:      uuidOrNil(r.ProductVersionID),
		Type:                  licenseType,
		Scope:                 model.LicenseScope(r.LicenseScope),
		LicensingPeriod:       r.LicensingPeriod,
		RenewableAlertMessage: r.RenewableAlertMessage,
		GracePeriodDays:       r.GracePeriodDays,
		ExpiryDate:            r.ExpiryDate.ptr(),
		MaxUsersAllowed:       r.MaxUsersAllowed,
		MacAddresses:          r.MacAddresses,
		AllowedCountries:      r.AllowedCountries,
	}, nil
}

// updateLicenseRequest 所有字段可选，出现即覆盖
type updateLicenseRequest struct {
	CustomerID            *string   `json:"customer_id" validate:"omitempty,uuid"`
	ProductID             *string   `json:"product_id" validate:"omitempty,uuid"`
	ProductVersionID      *string   `json:"product_version_id" validate:"omitempty,uuid"`
	LicenseType           *string   `json:"license_type"`
	LicenseScope          *string   `json:"license_scope" validate:"omitempty,oneof=international local"`
	LicensingPeriod       *int      `json:"licensing_period" validate:"omitempty,gte=1"`
	RenewableAlertMessage *string   `json:"renewable_alert_message"`
	GracePeriodDays       *int      `json:"grace_period_days" validate:"omitempty,gte=0"`
	ExpiryDate            *flexTime `json:"expiry_date"`
	MaxUsersAllowed       *int      `json:"max_users_allowed" validate:"omitempty,gte=1"`
	CurrentUsers          *int      `json:"current_users" validate:"omitempty,gte=0"`
	MacAddresses          *[]string `json:"mac_addresses" validate:"omitempty,dive,mac"`
	AllowedCountries      *[]string `json:"allowed_countries" validate:"omitempty,dive,country"`
}

func (r updateLicenseRequest) toPatch() (model.LicensePatch, error) {
	patch := model.LicensePatch{
		LicensingPeriod:       r.LicensingPeriod,
		RenewableAlertMessage: r.RenewableAlertMessage,
		GracePeriodDays:       r.GracePeriodDays,
		ExpiryDate:            r.ExpiryDate.ptr(),
		MaxUsersAllowed:       r.MaxUsersAllowed,
		CurrentUsers:          r.CurrentUsers,
		MacAddresses:          r.MacAddresses,
		AllowedCountries:      r.AllowedCountries,
	}
	patch.CustomerID = optionalUUID(r.CustomerID)
	patch.ProductID = optionalUUID(r.ProductID)
	patch.ProductVersionID = optionalUUID(r.ProductVersionID)
	if r.LicenseType != nil {
		licenseType, err := model.ParseLicenseType(*r.LicenseType)
		if err != nil {
			return model.LicensePatch{}, invalidLicenseType(err)
		}
		patch.Type = &licenseType
	}
	if r.LicenseScope != nil {
		scope := model.LicenseScope(*r.LicenseScope)
		patch.Scope = &scope
	}
	return patch, nil
}

func uuidOrNil(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	return uuid.MustParse(raw)
}

func optionalUUID(raw *string) *uuid.UUID {
	if raw == nil {
		return nil
	}
	id := uuid.MustParse(*raw)
	return &id
}

func invalidLicenseType(err error) error {
	return apperr.Wrap(apperr.CodeValidation, err, "invalid license type").
		WithDetails(map[string]string{"license_type": err.Error()})
}

// ListLicenses 分页列出许可证，可按客户或产品过滤
func (h *Handler) ListLicenses(c *fiber.Ctx) error {
	page, err := queryInt(c, "page", 1, 1, 1<<20)
	if err != nil {
		return h.fail(c, err)
	}
	pageSize, err := queryInt(c, "page_size", 10, 1, 100)
	if err != nil {
		return h.fail(c, err)
	}
	customerID, err := queryUUID(c, "customer_id")
	if err != nil {
		return h.fail(c, err)
	}
	productID, err := queryUUID(c, "product_id")
	if err != nil {
		return h.fail(c, err)
	}

	licenses, total, err := h.licenses.List(c.UserContext(), model.LicenseFilter{
		CustomerID: customerID,
		ProductID:  productID,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"licenses":  licenses,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *Handler) CreateLicense(c *fiber.Ctx) error {
	var req createLicenseRequest
	if err := bindJSON(c, &req); err != nil {
		return h.fail(c, err)
	}
	input, err := req.toInput()
	if err != nil {
		return h.fail(c, err)
	}

	license, err := h.licenses.Create(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(license)
}

// GetLicense 获取单个许可证详情
func (h *Handler) GetLicense(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	license, err := h.licenses.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(license)
}

// UpdateLicense 更新许可证信息
func (h *Handler) UpdateLicense(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}

	var req updateLicenseRequest
	if err := bindJSON(c, &req); err != nil {
		return h.fail(c, err)
	}
	patch, err := req.toPatch()
	if err != nil {
		return h.fail(c, err)
	}

	license, err := h.licenses.Update(c.UserContext(), middleware.UserID(c), id, patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "许可证更新成功",
		"license": license,
	})
}

// DeleteLicense 删除许可证
func (h *Handler) DeleteLicense(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.licenses.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "许可证删除成功",
	})
}

// LicenseLogs 查询许可证的校验记录，最新的在前
func (h *Handler) LicenseLogs(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	limit, err := queryInt(c, "limit", 100, 1, 1000)
	if err != nil {
		return h.fail(c, err)
	}

	logs, err := h.licenses.VerificationLogs(c.UserContext(), id, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"logs": logs,
	})
}

type verifyRequest struct {
	LicenseID   string `json:"license_id"`
	AddSeat     bool   `json:"add_seat"`
	MacAddress  string `json:"mac_address"`
	CountryCode string `json:"country_code"`
	DeviceInfo  string `json:"device_info"`
}

// VerifyLicense 客户端校验许可证，校验未通过也返回 200，由 is_valid 区分
func (h *Handler) VerifyLicense(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bindJSON(c, &req); err != nil {
		return h.fail(c, err)
	}

	raw := strings.TrimSpace(req.LicenseID)
	if raw == "" {
		return h.fail(c, apperr.New(apperr.CodeValidation, "License ID is required"))
	}
	licenseID, err := uuid.Parse(raw)
	if err != nil {
		return h.fail(c, apperr.New(apperr.CodeValidation, "invalid license id").
			WithDetails(map[string]string{"license_id": "must be a valid UUID"}))
	}

	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = c.Get(fiber.HeaderUserAgent)
	}

	result, err := h.verifier.Verify(c.UserContext(), service.VerifyRequest{
		LicenseID: licenseID,
		Context: model.VerificationContext{
			MacAddress:  strings.TrimSpace(req.MacAddress),
			CountryCode: strings.TrimSpace(req.CountryCode),
			AddSeat:     req.AddSeat,
		},
		IPAddress:  c.IP(),
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) IncrementSeats(c *fiber.Ctx) error {
	return h.seatOp(c, h.seats.Increment)
}

func (h *Handler) DecrementSeats(c *fiber.Ctx) error {
	return h.seatOp(c, h.seats.Decrement)
}

func (h *Handler) ResetSeats(c *fiber.Ctx) error {
	return h.seatOp(c, h.seats.Reset)
}

type seatFunc func(ctx context.Context, actorID uint, id uuid.UUID) (*model.License, error)

func (h *Handler) seatOp(c *fiber.Ctx, op seatFunc) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	license, err := op(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"license_id":        license.ID,
		"current_users":     license.CurrentUsers,
		"max_users_allowed": license.MaxUsersAllowed,
	})
}
