package handler

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/response"
)

const (
	authTokenCookieName = "odmhub_token"
	csrfCookieName      = "csrf_token"
)

// SecurityHeadersMiddleware adds security-related headers to API responses.
func SecurityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Prevent caching of sensitive API responses
		c.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Set("Pragma", "no-cache")
		c.Set("Expires", "0")

		return c.Next()
	}
}

// PageSecurityHeadersMiddleware is the page variant: rendered pages load
// their own styles and images, and the footer may link out.
func PageSecurityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy",
			"default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals("request_id", requestID)
		c.SetUserContext(logger.ContextWithLogger(c.UserContext(),
			logger.FromContext(c.UserContext()).WithRequestID(requestID)))

		return c.Next()
	}
}

// requestToken returns the bearer token, falling back to the auth cookie.
// ok is false when an Authorization header is present but malformed.
func requestToken(c *fiber.Ctx) (token string, ok bool) {
	if header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); header != "" {
		return bearerToken(header)
	}
	return strings.TrimSpace(c.Cookies(authTokenCookieName)), true
}

func AuthMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := requestToken(c)
		if !ok {
			return response.Unauthorized(c, "invalid authorization header format")
		}
		if token == "" {
			return response.Unauthorized(c, "missing authorization token")
		}

		claims, err := authSvc.ValidateToken(token)
		if err != nil {
			RecordAuthFailure("invalid_token")
			return response.Unauthorized(c, "invalid or expired token")
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

// OptionalAuthMiddleware sets user_id when a valid token is present and
// lets anonymous requests through with an empty user_id.
func OptionalAuthMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", "")

		token, ok := requestToken(c)
		if !ok || token == "" {
			return c.Next()
		}
		claims, err := authSvc.ValidateToken(token)
		if err != nil {
			return c.Next()
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

// AdminMiddleware checks that the authenticated user has admin privileges.
// Must be chained after AuthMiddleware.
func AdminMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := localUserID(c)
		if userID == "" {
			return response.Unauthorized(c, "authentication required")
		}

		user, err := authSvc.GetUserByID(userID)
		if err != nil {
			return response.Unauthorized(c, "user not found")
		}
		if !user.IsAdmin {
			return response.Forbidden(c, "admin access required")
		}

		return c.Next()
	}
}

// CSRFMiddleware validates CSRF tokens for state-changing requests.
// The token is issued at login and must be echoed in the X-CSRF-Token header.
func CSRFMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		// Bearer clients are not exposed to cross-site cookie replay.
		if c.Get(fiber.HeaderAuthorization) != "" {
			return c.Next()
		}

		csrfToken := c.Get("X-CSRF-Token")
		if csrfToken == "" {
			return response.Forbidden(c, "missing CSRF token")
		}
		expectedToken := c.Cookies(csrfCookieName)
		if expectedToken == "" || csrfToken != expectedToken {
			return response.Forbidden(c, "invalid CSRF token")
		}

		return c.Next()
	}
}

// BodyLimitMiddleware enforces a per-route body size limit.
func BodyLimitMiddleware(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return response.Error(c, fiber.StatusRequestEntityTooLarge, "request body too large")
		}
		return c.Next()
	}
}

// GenerateCSRFToken returns a random hex token.
func GenerateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func localUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("user_id").(string)
	if !ok {
		return ""
	}
	return userID
}
