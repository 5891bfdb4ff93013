package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/policy"
	"github.com/relaychat/relay-api/internal/ratelimit"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger           *zerolog.Logger
	JWTSecret        string
	Activity         ActivityRecorder
	RateLimitStore   ratelimit.CounterStore
	RateLimitMax     int64
	RateLimitWindow  time.Duration
	RestrictedWindow policy.RestrictedWindow
	Now              func() time.Time
}

// Register attaches the request pipeline in its fixed order: panic recovery,
// correlation, metrics, CORS, identity resolution, request logging, time
// restriction, rate limiting, role authorization. Each guard either
// short-circuits with a structured rejection or passes the request on.
func Register(app *fiber.App, cfg Config) {
	logger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(Authenticate(cfg.JWTSecret, cfg.Activity))
	app.Use(RequestLogging(logger))
	app.Use(TimeRestriction(cfg.RestrictedWindow, cfg.Now))
	app.Use(SendRateLimit(cfg.RateLimitStore, cfg.RateLimitMax, cfg.RateLimitWindow, logger))
	app.Use(RoleGate())
}
