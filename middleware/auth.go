// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// UserContextMiddleware extracts the user identity headers the Gateway
// injects after verifying the JWT, and stores them in locals.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("🚫 [USER_CTX] Missing X-User-ID header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "user identity missing",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", c.Get("X-User-Roles"))
		return c.Next()
	}
}

// AdminOnly rejects requests whose role header does not include admin.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").(string)
		for _, role := range strings.Split(roles, ",") {
			if strings.TrimSpace(role) == "admin" {
				return c.Next()
			}
		}

		log.Printf("🚫 [USER_CTX] Non-admin access attempt on %s", c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "admin role required",
		})
	}
}
