package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaychat/relay-api/internal/config"
	"github.com/relaychat/relay-api/internal/handler"
	"github.com/relaychat/relay-api/internal/middleware"
	"github.com/relaychat/relay-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	MessageHandler      *handler.MessageHandler
	ConversationHandler *handler.ConversationHandler
	NotificationHandler *handler.NotificationHandler
	SeedHandler         *handler.SeedHandler
}

// Register wires the HTTP routes into the fiber application. The global
// middleware chain is installed separately; routes here only add the
// per-group authentication requirement.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	requireAuth := middleware.RequireAuth()

	if deps.AuthHandler != nil {
		auth := app.Group("/api/auth")
		deps.AuthHandler.Register(auth)
		deps.AuthHandler.RegisterProtected(auth.Group("", requireAuth))
	}

	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(app.Group("/api/messages", requireAuth))
	}

	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(app.Group("/api/conversations", requireAuth))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(app.Group("/api/notifications", requireAuth))
	}

	if deps.SeedHandler != nil {
		// The seed endpoint gates itself on the shared token instead of a JWT.
		deps.SeedHandler.Register(app.Group("/api/seed"))
	}
}
