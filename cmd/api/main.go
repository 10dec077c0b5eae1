package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/auth"
	"github.com/noah-isme/feedback-api/internal/config"
	"github.com/noah-isme/feedback-api/internal/database"
	"github.com/noah-isme/feedback-api/internal/handler"
	"github.com/noah-isme/feedback-api/internal/middleware"
	"github.com/noah-isme/feedback-api/internal/repository"
	"github.com/noah-isme/feedback-api/internal/router"
	"github.com/noah-isme/feedback-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	created := database.EnsureIndexes(db, logger)
	logger.Info().Int("indexes_created", created).Msg("database ready")

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("summary cache disabled")
		redisClient = nil
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	summaryCache := service.NewSummaryCache(redisClient, cfg.SummaryCacheTTL, logger)
	links := service.NewShareLinkBuilder(cfg.FrontendURL, cfg.ShareLinkTemplate)

	authService := service.NewAuthService(userRepo, tokens, validate, logger)
	formService := service.NewFormService(formRepo, feedbackRepo, validate, summaryCache, links, logger)
	feedbackService := service.NewFeedbackService(formRepo, feedbackRepo, validate, summaryCache, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		FormHandler:     handler.NewFormHandler(formService, feedbackService, logger),
		FeedbackHandler: handler.NewFeedbackHandler(feedbackService, logger),
		JWTMiddleware:   middleware.JWTProtected(tokens),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("starting http server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, db, redisClient, logger)
}

func waitForShutdown(app *fiber.App, db *gorm.DB, redisClient *redis.Client, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}

	if err := database.Close(db); err != nil {
		logger.Warn().Err(err).Msg("failed to close database")
	}

	logger.Info().Msg("server stopped")
}
