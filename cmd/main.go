package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchhub/api/handler"
	apiMiddleware "merchhub/api/middleware"
	"merchhub/api/routes"
	"merchhub/config"
	"merchhub/internal/deeplink"
	"merchhub/internal/notify"
	"merchhub/internal/repository"
	"merchhub/internal/service"
	"merchhub/internal/storage"
	"merchhub/migrations"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectionDb(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	if cfg.MigrateOnStart {
		sqlDB, err := db.DB()
		if err != nil {
			logger.WithError(err).Fatal("database handle")
		}
		if err := migrations.Up(ctx, sqlDB, logger); err != nil {
			logger.WithError(err).Fatal("migrations")
		}
	}

	assets, storageRoot, err := newAssetStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("asset store")
	}

	var transport notify.Transport = notify.LogTransport{Logger: logger}
	if cfg.ResendAPIKey != "" {
		transport = notify.NewResendTransport(cfg.ResendAPIKey, cfg.MailFrom)
	}
	dispatcher, err := notify.NewDispatcher(transport, notify.Options{AppName: cfg.AppName, LinkTTL: cfg.VerificationTTL}, logger)
	if err != nil {
		logger.WithError(err).Fatal("notification dispatcher")
	}

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)
	transactor := repository.NewTransactor(db)

	validate := service.NewValidator()
	redirector := deeplink.NewRedirector(cfg.AppScheme)
	signer := service.VerificationSigner{
		Secret: []byte(cfg.VerificationSecret),
		Issuer: cfg.VerificationIssuer,
		TTL:    cfg.VerificationTTL,
	}

	authService := service.NewAuthService(
		accountRepo,
		profileRepo,
		tokenRepo,
		departmentRepo,
		securityRepo,
		transactor,
		dispatcher,
		service.BcryptPasswordHasher{Cost: cfg.BcryptCost},
		signer,
		validate,
		service.RealClock{},
		service.AuthConfig{
			VerificationURL: cfg.VerificationURL(),
			RedirectURL:     redirector.Fallback(),
		},
		logger,
	)
	profileService := service.NewProfileService(accountRepo, profileRepo, securityRepo, transactor, assets, validate, logger)

	// `merchhub verify-account <email>` verifies an account from the shell.
	// The first staff account has no administrator to verify it.
	if len(os.Args) == 3 && os.Args[1] == "verify-account" {
		account, err := authService.VerifyByEmail(ctx, os.Args[2])
		if err != nil {
			logger.WithError(err).Fatal("verify account")
		}
		logger.WithFields(logrus.Fields{"account_id": account.ID, "role": account.Role}).Info("account verified")
		return
	}

	renderer, err := handler.NewTemplateRenderer()
	if err != nil {
		logger.WithError(err).Fatal("templates")
	}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Renderer = renderer
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.BodyLimit("4M"))
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{Auth: authService, Logger: logger}
	router := routes.NewRouter(
		app,
		handler.NewAuthHandler(authService, profileService.AvatarURL, logger),
		handler.NewProfileHandler(profileService, logger),
		handler.NewVerificationHandler(authService, redirector, cfg.AppName, logger),
		handler.NewAdminHandler(authService, logger),
		authMiddleware,
	)
	router.StorageRoot = storageRoot

	redisClient, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, using in-process rate limits")
	}
	if redisClient != nil {
		defer redisClient.Close()
		router.AuthRate = apiMiddleware.NewRedisRateLimiter(redisClient, "auth", 10, time.Minute, logger)
		router.LoginRate = apiMiddleware.NewRedisRateLimiter(redisClient, "login", 6, time.Minute, logger)
		router.ResendRate = apiMiddleware.NewRedisRateLimiter(redisClient, "resend", 3, time.Minute, logger)
	}

	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := apiMiddleware.NewMetrics(registry)
		if err != nil {
			logger.WithError(err).Fatal("metrics")
		}
		router.Metrics = metrics
	}
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("server started")
	if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("server stopped")
}

// newAssetStore also returns the directory to serve under /storage, which is
// empty for remote stores.
func newAssetStore(ctx context.Context, cfg config.Config) (service.AssetStore, string, error) {
	if cfg.StorageDriver == config.StorageS3 {
		store, err := storage.NewS3(ctx, storage.S3Config{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3PathStyle,
		})
		return store, "", err
	}
	store, err := storage.NewDisk(cfg.StorageRoot, cfg.StorageURL)
	return store, cfg.StorageRoot, err
}
