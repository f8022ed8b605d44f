package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-management-system/internal/cache"
	"license-management-system/internal/config"
	"license-management-system/internal/database"
	"license-management-system/internal/handler"
	"license-management-system/internal/logger"
	"license-management-system/internal/metrics"
	"license-management-system/internal/middleware"
	"license-management-system/internal/respond"
	"license-management-system/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	serviceName     = "license-api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "license api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	// 初始化数据库
	db, err := database.Open(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, database.Close(db))
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.SeedAdmin(ctx, db, cfg.Admin, logg); err != nil {
		return err
	}

	var rateStore handler.RateStore
	if cfg.Redis.Enabled() {
		redisClient, redisErr := cache.New(ctx, cfg.Redis)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		rateStore = redisClient
	} else {
		logg.Info(ctx, "redis not configured, verify rate limiting disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	licenseMetrics := metrics.NewLicenseMetrics(reg)

	h, licenses, err := buildHandler(ctx, cfg, db, licenseMetrics, logg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: respond.ErrorHandler(logg),
	})

	// 中间件
	app.Use(recover.New())
	app.Use(middleware.RequestID(logg))
	app.Use(middleware.AccessLog(logg))
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.App.CORSOrigins}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	h.SetupRoutes(app, handler.RouteConfig{
		JWTSecret:    cfg.JWT.Secret,
		Users:        database.NewUserStore(db),
		RateStore:    rateStore,
		VerifyLimit:  cfg.Redis.VerifyLimit,
		VerifyWindow: cfg.Redis.VerifyWindow,
		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	})

	listenErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"env":  cfg.App.Env,
			"addr": cfg.App.ListenAddr(),
		}), "starting license api")
		listenErr <- app.Listen(cfg.App.ListenAddr())
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := app.ShutdownWithContext(shutdownCtx)

	// 等待后台表格同步完成
	licenses.Wait()
	if err := <-listenErr; err != nil && !errors.Is(err, context.Canceled) {
		shutdownErr = multierr.Append(shutdownErr, err)
	}
	return shutdownErr
}

func buildHandler(ctx context.Context, cfg *config.Config, db *gorm.DB, m *metrics.LicenseMetrics, logg *logger.Logger) (*handler.Handler, *service.LicenseService, error) {
	licenseStore := database.NewLicenseStore(db)
	logStore := database.NewVerificationLogStore(db)
	catalog := database.NewCatalogStore(db)
	users := database.NewUserStore(db)
	evaluator := service.NewEvaluator(cfg.Policy.ExpiryWarningDays)
	clock := service.SystemClock{}

	var syncer service.LicenseSyncer
	sheetSync, err := service.NewSheetSyncService(ctx, cfg.Sheets, logg)
	switch {
	case err != nil:
		// 表格同步失败不影响服务启动
		logg.Warn(ctx, "google sheets sync disabled", err)
	case sheetSync != nil:
		syncer = sheetSync
		if cfg.Sheets.ExportOnStart {
			all, err := licenseStore.All(ctx)
			if err == nil {
				err = sheetSync.ExportAll(ctx, all)
			}
			if err != nil {
				logg.Warn(ctx, "initial sheet export failed", err)
			}
		}
	}

	audit, err := service.NewAuditService(database.NewOperationLogStore(db), logg)
	if err != nil {
		return nil, nil, err
	}
	licenses, err := service.NewLicenseService(service.LicenseParams{
		Licenses: licenseStore,
		Catalog:  catalog,
		Logs:     logStore,
		Audit:    audit,
		Syncer:   syncer,
		Clock:    clock,
		Logger:   logg,
	})
	if err != nil {
		return nil, nil, err
	}
	verifier, err := service.NewVerificationService(service.VerificationParams{
		Licenses:  licenseStore,
		Logs:      logStore,
		Evaluator: evaluator,
		Clock:     clock,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return nil, nil, err
	}
	seats, err := service.NewSeatService(licenseStore, audit, m)
	if err != nil {
		return nil, nil, err
	}
	stats, err := service.NewStatisticsService(licenseStore, catalog, logStore, evaluator, clock)
	if err != nil {
		return nil, nil, err
	}
	auth, err := service.NewAuthService(users, cfg.JWT.Secret, cfg.JWT.TTL(), clock, logg)
	if err != nil {
		return nil, nil, err
	}

	h, err := handler.New(handler.Params{
		Licenses:     licenses,
		Verification: verifier,
		Seats:        seats,
		Statistics:   stats,
		Auth:         auth,
		Audit:        audit,
		Logger:       logg,
	})
	if err != nil {
		return nil, nil, err
	}
	return h, licenses, nil
}
