package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// KeyMiddleware guards the agent's local control surface with a shared key.
// An empty key disables the guard (local development).
func KeyMiddleware(key string) fiber.Handler {
	keyBytes := []byte(key)
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}

		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		if subtle.ConstantTimeCompare([]byte(token), keyBytes) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid control key")
		}
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
