package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/odmhub/odmhub/internal/config"
	"github.com/odmhub/odmhub/internal/handler"
	"github.com/odmhub/odmhub/internal/i18n"
	"github.com/odmhub/odmhub/internal/media"
	"github.com/odmhub/odmhub/internal/repository"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/internal/templatetags"
	"github.com/odmhub/odmhub/pkg/database"
	"github.com/odmhub/odmhub/pkg/logger"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	logger.Init(logger.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	logger.Info().
		Str("bind_address", cfg.Server.BindAddress).
		Str("port", cfg.Server.Port).
		Str("log_level", logLevel).
		Bool("single_user", cfg.UI.SingleUserMode).
		Bool("desktop", cfg.UI.DesktopMode).
		Int("grace_period_hours", cfg.UI.GracePeriodHours).
		Msg("Starting odmhub server")

	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	if err := database.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
	}
	logger.Info().Msg("Database schema initialized")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Services
	settingsSvc := service.NewSettingsService(settingsRepo)
	quotaSvc := service.NewQuotaService(userRepo, cfg.UI.GracePeriodHours)
	authSvc := service.NewAuthService(userRepo, cfg)

	branding, err := config.LoadBranding(cfg.BrandingFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.BrandingFile).Msg("Failed to load branding file")
	}
	if branding != nil {
		if err := settingsSvc.Seed(branding.Values()); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.BrandingFile).Msg("Failed to seed branding settings")
		}
	}

	storage, err := media.NewStorage(cfg.Media.Root)
	if err != nil {
		logger.Fatal().Err(err).Str("root", cfg.Media.Root).Msg("Failed to initialize media storage")
	}

	catalog := i18n.NewCatalog(cfg.UI.DefaultLanguage)
	tags := templatetags.New(cfg.UI, catalog, storage)

	// Handlers
	pageHandler, err := handler.NewPageHandler(tags, catalog, settingsSvc, quotaSvc)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse page templates")
	}
	tokenTTL := time.Duration(cfg.Auth.TokenDuration) * time.Hour
	authHandler := handler.NewAuthHandler(authSvc, quotaSvc, cfg.IsProduction, tokenTTL)
	adminHandler := handler.NewAdminHandler(settingsSvc, quotaSvc, userRepo, storage)

	app := fiber.New(fiber.Config{
		BodyLimit:               2 * media.MaxImageSize,
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             60 * time.Second,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.TrustedProxies,
		EnableIPValidation:      true,
	})

	logger.Info().
		Strs("trusted_proxies", cfg.Server.TrustedProxies).
		Msg("Trusted proxy configuration loaded")

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))
	app.Use(handler.RequestIDMiddleware())
	app.Use(handler.MetricsMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Accept-Language, Authorization, X-Request-ID, X-CSRF-Token",
		AllowMethods:     "GET, POST, PUT, OPTIONS",
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	app.Use(logger.Middleware())

	optionalAuth := handler.OptionalAuthMiddleware(authSvc)
	requireAuth := handler.AuthMiddleware(authSvc)

	// Pages
	app.Get("/", handler.PageSecurityHeadersMiddleware(), optionalAuth, pageHandler.Dashboard)
	app.Static("/media", storage.Root(), fiber.Static{
		MaxAge: 3600,
	})

	api := app.Group("/api/v1", handler.SecurityHeadersMiddleware())

	// Counters live in the database so limits survive restarts.
	authRateLimiter := handler.NewPersistentRateLimiter(db, "auth", 10, time.Minute, nil)
	jsonBodyLimit := handler.BodyLimitMiddleware(1 * 1024 * 1024)

	api.Get("/ui", optionalAuth, pageHandler.UIValues)

	auth := api.Group("/auth")
	auth.Post("/register", jsonBodyLimit, authRateLimiter.Middleware(), authHandler.Register)
	auth.Post("/login", jsonBodyLimit, authRateLimiter.Middleware(), authHandler.Login)
	auth.Post("/logout", jsonBodyLimit, requireAuth, handler.CSRFMiddleware(), authHandler.Logout)
	auth.Get("/me", requireAuth, authHandler.GetMe)
	auth.Get("/storage/quota", requireAuth, authHandler.StorageQuota)

	admin := api.Group("/admin", requireAuth, handler.AdminMiddleware(authSvc))
	admin.Get("/settings", adminHandler.GetSettings)
	admin.Put("/settings", jsonBodyLimit, handler.CSRFMiddleware(), adminHandler.UpdateSettings)
	admin.Post("/settings/images/:field", handler.CSRFMiddleware(), adminHandler.UploadImage)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/quota", jsonBodyLimit, handler.CSRFMiddleware(), adminHandler.SetUserQuota)
	admin.Put("/users/:id/admin", jsonBodyLimit, handler.CSRFMiddleware(), adminHandler.SetUserAdmin)

	healthHandler := handler.NewHealthHandler(db, cfg.Media.Root)
	app.Get("/health", healthHandler.Liveness)
	app.Get("/health/ready", healthHandler.Readiness)

	metricsHandler := handler.NewMetricsHandler()
	if cfg.Observability.MetricsEnabled {
		if cfg.IsProduction {
			app.Get("/metrics", handler.BearerTokenMiddleware(cfg.Observability.MetricsToken), metricsHandler.Handler())
		} else {
			app.Get("/metrics", metricsHandler.Handler())
		}
	} else {
		logger.Info().Msg("Metrics endpoint disabled")
	}

	// Starts grace periods for users who went over quota while no page was
	// rendered for them, and clears them for users back under.
	quotaLog := logger.DefaultLogger.Named("quota")
	refreshQuotas := func() {
		over, err := quotaSvc.RefreshAll()
		if err != nil {
			quotaLog.Error().Err(err).Msg("Failed to refresh quota deadlines")
			return
		}
		handler.SetUsersOverQuota(over)
		quotaLog.Debug().Int("over_quota", over).Msg("Quota deadlines refreshed")
	}
	refreshQuotas()

	quotaStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refreshQuotas()
			case <-quotaStop:
				return
			}
		}
	}()

	go func() {
		addr := net.JoinHostPort(cfg.Server.BindAddress, cfg.Server.Port)
		logger.Info().
			Str("address", addr).
			Bool("metrics_enabled", cfg.Observability.MetricsEnabled).
			Msg("HTTP server listening")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info().Msg("Stopping background jobs...")
	close(quotaStop)
	authRateLimiter.Stop()

	logger.Info().Msg("Shutting down HTTP server...")
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing database")
	}

	logger.Info().Msg("Server stopped gracefully")
}
