package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/pkg/response"
)

// BearerTokenMiddleware protects an operational endpoint such as /metrics
// with a static bearer token. An empty token disables the endpoint.
func BearerTokenMiddleware(expectedToken string) fiber.Handler {
	expected := []byte(strings.TrimSpace(expectedToken))

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return response.Forbidden(c, "endpoint is disabled")
		}

		provided, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return response.Unauthorized(c, "missing or invalid authorization header")
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			return response.Unauthorized(c, "invalid authorization token")
		}

		return c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
