package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"license-management-system/internal/config"
	"license-management-system/internal/database"
	"license-management-system/internal/logger"
	"license-management-system/internal/model"
	"license-management-system/internal/respond"
	"license-management-system/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret        = "handler-test-secret"
	testAdminPassword = "admin-pass"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	licenses *service.LicenseService
	token    string
	customer model.Customer
	product  model.Product
	version  model.ProductVersion
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := database.InitTestDB()
	t.Cleanup(func() { database.CleanTestDB(db) })

	require.NoError(t, database.SeedAdmin(ctx, db, config.AdminConfig{
		Username: "admin",
		Password: testAdminPassword,
		Email:    "admin@example.com",
	}, nil))

	env := &testEnv{
		db:       db,
		customer: model.Customer{Name: "Acme", Country: "US"},
		product:  model.Product{Name: "Trader"},
	}
	require.NoError(t, db.Create(&env.customer).Error)
	require.NoError(t, db.Create(&env.product).Error)
	env.version = model.ProductVersion{ProductID: env.product.ID, Version: "2.1.0", ReleaseDate: time.Now()}
	require.NoError(t, db.Create(&env.version).Error)

	licenseStore := database.NewLicenseStore(db)
	logStore := database.NewVerificationLogStore(db)
	catalog := database.NewCatalogStore(db)
	users := database.NewUserStore(db)
	evaluator := service.NewEvaluator(30)

	audit, err := service.NewAuditService(database.NewOperationLogStore(db), logger.Nop())
	require.NoError(t, err)
	licenses, err := service.NewLicenseService(service.LicenseParams{
		Licenses: licenseStore,
		Catalog:  catalog,
		Logs:     logStore,
		Audit:    audit,
	})
	require.NoError(t, err)
	verifier, err := service.NewVerificationService(service.VerificationParams{
		Licenses:  licenseStore,
		Logs:      logStore,
		Evaluator: evaluator,
	})
	require.NoError(t, err)
	seats, err := service.NewSeatService(licenseStore, audit, nil)
	require.NoError(t, err)
	stats, err := service.NewStatisticsService(licenseStore, catalog, logStore, evaluator, nil)
	require.NoError(t, err)
	auth, err := service.NewAuthService(users, testSecret, time.Hour, nil, logger.Nop())
	require.NoError(t, err)

	h, err := New(Params{
		Licenses:     licenses,
		Verification: verifier,
		Seats:        seats,
		Statistics:   stats,
		Auth:         auth,
		Audit:        audit,
		Logger:       logger.Nop(),
	})
	require.NoError(t, err)

	env.app = fiber.New(fiber.Config{ErrorHandler: respond.ErrorHandler(logger.Nop())})
	h.SetupRoutes(env.app, RouteConfig{
		JWTSecret: testSecret,
		Users:     users,
		Health:    func(ctx context.Context) error { return database.Ping(ctx, db) },
	})
	env.licenses = licenses
	env.token = env.login(t, "admin", testAdminPassword)
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"username": username,
		"password": password,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	decode(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

// addUser 直接写库创建普通用户
func (e *testEnv) addUser(t *testing.T, username, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&model.User{
		Username: username,
		Password: string(hashed),
		Email:    username + "@example.com",
		Role:     model.RoleUser,
		Status:   model.UserStatusActive,
	}).Error)
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) createLicense(t *testing.T, payload fiber.Map) model.License {
	t.Helper()
	body := fiber.Map{
		"customer_id":        e.customer.ID.String(),
		"product_id":         e.product.ID.String(),
		"product_version_id": e.version.ID.String(),
	}
	for k, v := range payload {
		body[k] = v
	}
	resp := e.do(t, http.MethodPost, "/api/v1/licenses", e.token, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	decode(t, resp, &created)
	license, err := e.licenses.Get(context.Background(), mustUUID(t, created.ID))
	require.NoError(t, err)
	return *license
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}
