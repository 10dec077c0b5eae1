package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/feedback-api/internal/auth"
	"github.com/noah-isme/feedback-api/internal/utils"
)

const (
	// LocalUserID holds the authenticated subject id.
	LocalUserID = "user_id"
	// LocalUserRole holds the authenticated role.
	LocalUserRole = "user_role"

	msgNotAuthenticated  = "Not authenticated"
	msgInvalidCredential = "Could not validate credentials"
)

// JWTProtected validates the bearer token and stores the caller identity in Locals.
func JWTProtected(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return unauthorized(c, msgNotAuthenticated)
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return unauthorized(c, msgInvalidCredential)
		}

		identity, err := tokens.Validate(strings.TrimSpace(authorization[len(bearer):]))
		if err != nil {
			return unauthorized(c, msgInvalidCredential)
		}

		c.Locals(LocalUserID, identity.SubjectID)
		c.Locals(LocalUserRole, identity.Role)

		return c.Next()
	}
}

// UserID returns the authenticated subject id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalUserID).(string); ok {
		return value
	}
	return ""
}

// UserRole returns the authenticated role, or "" for anonymous requests.
func UserRole(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalUserRole).(string); ok {
		return value
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return utils.SendError(c, fiber.StatusUnauthorized, message)
}
