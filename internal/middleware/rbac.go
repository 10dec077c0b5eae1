package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/feedback-api/internal/auth"
	"github.com/noah-isme/feedback-api/internal/utils"
)

// RequireRole ensures that the authenticated user holds role. It must run after JWTProtected.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := auth.Identity{SubjectID: UserID(c), Role: UserRole(c)}
		if identity.SubjectID == "" {
			return unauthorized(c, msgNotAuthenticated)
		}
		if err := auth.RequireRole(identity, role); err != nil {
			return utils.SendError(c, fiber.StatusForbidden, "Not enough permissions")
		}
		return c.Next()
	}
}
