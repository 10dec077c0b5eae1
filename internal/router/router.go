package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/feedback-api/internal/config"
	"github.com/noah-isme/feedback-api/internal/handler"
	"github.com/noah-isme/feedback-api/internal/middleware"
	"github.com/noah-isme/feedback-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	FormHandler     *handler.FormHandler
	FeedbackHandler *handler.FeedbackHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/", handler.Root(cfg))
	api.Get("/health", handler.HealthCheck(cfg))

	// RequireRole still rejects anonymous callers when no JWT middleware is supplied.
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	adminGuards := []fiber.Handler{jwtMiddleware, middleware.RequireRole("admin")}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), jwtMiddleware)
	}

	if deps.FormHandler != nil {
		deps.FormHandler.Register(api.Group("/forms"), adminGuards...)
	}

	if deps.FeedbackHandler != nil {
		deps.FeedbackHandler.Register(api.Group("/feedback"))
	}
}
