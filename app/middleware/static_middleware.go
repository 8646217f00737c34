package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PlugStatic short-circuits well-known probe paths under the static prefix
// so they never reach the filesystem handler.
func PlugStatic(staticPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		if strings.HasPrefix(path, staticPrefix) {
			if strings.Contains(path, "/.well-known/") {
				return c.JSON(fiber.Map{
					"status": "ignored dynamic-static",
				})
			}
		}

		return c.Next()
	}
}
