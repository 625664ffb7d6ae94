package handler

import (
	"errors"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/internal/templatetags"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/response"
)

// emailRegex provides additional validation beyond net/mail
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return false
	}
	return emailRegex.MatchString(email)
}

func isValidPasswordLength(password string) bool {
	n := len(password)
	return n >= 8 && n <= 128
}

type AuthHandler struct {
	authSvc       *service.AuthService
	quotaSvc      *service.QuotaService
	secureCookies bool
	tokenTTL      time.Duration
}

func NewAuthHandler(authSvc *service.AuthService, quotaSvc *service.QuotaService, secureCookies bool, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authSvc:       authSvc,
		quotaSvc:      quotaSvc,
		secureCookies: secureCookies,
		tokenTTL:      tokenTTL,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	CSRFToken string      `json:"csrf_token,omitempty"`
	User      interface{} `json:"user,omitempty"`
}

// setSessionCookies stores the token for page requests and issues a CSRF
// token that must be echoed on state-changing API calls.
func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, token string) string {
	c.Cookie(&fiber.Cookie{
		Name:     authTokenCookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: "Lax",
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
	})

	csrfToken := GenerateCSRFToken()
	c.Cookie(&fiber.Cookie{
		Name:     csrfCookieName,
		Value:    csrfToken,
		HTTPOnly: false, // read by page scripts
		Secure:   h.secureCookies,
		SameSite: "Strict",
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
	return csrfToken
}

func parseCredentials(c *fiber.Ctx) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return req, errors.New("email and password are required")
	}
	if !isValidEmail(req.Email) {
		return req, errors.New("invalid email format")
	}
	return req, nil
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if !isValidPasswordLength(req.Password) {
		return response.BadRequest(c, "password must be between 8 and 128 characters")
	}

	user, token, err := h.authSvc.Register(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			return response.Error(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrRegistrationClosed):
			return response.Forbidden(c, err.Error())
		default:
			logger.Error().Err(err).Str("email", req.Email).Msg("Register failed")
			return response.InternalError(c, "registration failed")
		}
	}

	logger.Audit("user_registered", user.ID, map[string]string{
		"email": user.Email,
		"admin": strconv.FormatBool(user.IsAdmin),
	})

	c.Status(fiber.StatusCreated)
	return response.Success(c, AuthResponse{
		Token:     token,
		CSRFToken: h.setSessionCookies(c, token),
		User:      user,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if len(req.Password) > 128 {
		return response.BadRequest(c, "password is too long")
	}

	user, token, err := h.authSvc.Login(req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			logger.Error().Err(err).Msg("Login failed")
			return response.InternalError(c, "login failed")
		}
		RecordAuthFailure("invalid_credentials")
		logger.Audit("login_failed", "", map[string]string{
			"ip": c.IP(),
		})
		return response.Unauthorized(c, "invalid credentials")
	}

	logger.Audit("login_success", user.ID, map[string]string{
		"email": user.Email,
	})

	return response.Success(c, AuthResponse{
		Token:     token,
		CSRFToken: h.setSessionCookies(c, token),
		User:      user,
	})
}

// Logout clears the session cookies.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	for _, name := range []string{authTokenCookieName, csrfCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
			Secure:  h.secureCookies,
		})
	}
	logger.Audit("logout", localUserID(c), nil)
	return response.Success(c, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	userID := localUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "authentication required")
	}

	user, err := h.authSvc.GetUserByID(userID)
	if err != nil {
		return response.NotFound(c, "user not found")
	}
	return response.Success(c, user)
}

// StorageQuota reports usage against quota and, once over quota, how long
// until the grace period ends.
func (h *AuthHandler) StorageQuota(c *fiber.Ctx) error {
	userID := localUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "authentication required")
	}

	user, err := h.quotaSvc.Refresh(userID)
	if err != nil {
		return response.NotFound(c, "user not found")
	}

	info := h.quotaSvc.StorageInfo(user)
	out := map[string]interface{}{
		"quota_mb":    info.QuotaMB,
		"used_mb":     info.UsedMB,
		"used":        templatetags.DiskSize(float64(info.UsedMB)),
		"percentage":  info.Percentage,
		"over_quota":  info.OverQuota,
		"has_quota":   user.HasQuota(),
		"quota":       "",
		"deadline_at": info.QuotaDeadline,
	}
	if user.HasQuota() {
		out["quota"] = templatetags.DiskSize(float64(info.QuotaMB))
	}
	return response.Success(c, out)
}
