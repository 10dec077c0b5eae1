package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/feedback-api/internal/config"
	"github.com/noah-isme/feedback-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// RootResponse identifies the API on its root path.
type RootResponse struct {
	Message string `json:"message"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// Root answers liveness checks on /api/.
func Root(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, cfg.AppName, RootResponse{Message: cfg.AppName})
	}
}
