package auth

import (
	"github.com/gofiber/fiber/v2"
)

// RequireScope ensures the authenticated operator holds scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if !claims.HasScope(scope) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient scope")
		}
		return c.Next()
	}
}
