package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/config"
	"github.com/relaychat/relay-api/internal/database"
	"github.com/relaychat/relay-api/internal/handler"
	"github.com/relaychat/relay-api/internal/middleware"
	"github.com/relaychat/relay-api/internal/ratelimit"
	"github.com/relaychat/relay-api/internal/repository"
	"github.com/relaychat/relay-api/internal/router"
	"github.com/relaychat/relay-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		// Cross-node fan-out degrades to single-node delivery without NATS.
		logger.Warn().Err(err).Msg("nats unavailable, notification fan-out limited to this node")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityLogRepo := repository.NewActivityLogRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, "relay", natsConn, logger)
	authService := service.NewAuthService(userRepo, redisClient, cfg.JWTSecret, cfg.JWTRefreshSecret, validate, logger)
	messageService := service.NewMessageService(messageRepo, userRepo, activityLogRepo, notificationService, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, messageRepo, userRepo, notificationService, validate, logger)
	seedService := service.NewSeedService(userRepo, cfg.SeedEnabled, cfg.SeedToken, validate, logger)

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(runCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:           &logger,
		JWTSecret:        cfg.JWTSecret,
		Activity:         activityAdapter{authService},
		RateLimitStore:   ratelimit.NewRedisStore(redisClient, "relay:ratelimit"),
		RateLimitMax:     cfg.RateLimitMax,
		RateLimitWindow:  cfg.RateLimitWindow,
		RestrictedWindow: cfg.RestrictedWindow,
	})

	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		MessageHandler:      handler.NewMessageHandler(messageService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.StreamKeepAlive),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// activityAdapter lets the middleware record last-seen timestamps without
// depending on the full auth service surface.
type activityAdapter struct {
	auth service.AuthService
}

func (a activityAdapter) Touch(ctx context.Context, userID string) {
	a.auth.Touch(ctx, userID)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
