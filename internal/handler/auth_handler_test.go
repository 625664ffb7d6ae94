package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/config"
	"github.com/odmhub/odmhub/internal/models"
)

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t, nil)

	token, user := env.register(t, "Pilot@Example.com")
	if user.Email != "pilot@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if !user.IsAdmin {
		t.Fatal("expected first account to be admin")
	}
	if token == "" {
		t.Fatal("expected token")
	}

	status, resp := env.performJSONRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "pilot@example.com",
		"password": "correct-horse-battery",
	})
	if status != fiber.StatusOK || !resp.Success {
		t.Fatalf("login: status=%d error=%q", status, resp.Error)
	}
	var login AuthResponse
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.CSRFToken == "" {
		t.Fatalf("expected token and csrf token, got %+v", login)
	}

	status, resp = env.performJSONRequest(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("me: status=%d error=%q", status, resp.Error)
	}
	var me models.User
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, me.ID)
	}
}

func TestRegisterSetsSessionCookies(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"a@example.com","password":"correct-horse-battery"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := env.do(t, req)

	var names []string
	for _, c := range resp.Cookies() {
		names = append(names, c.Name)
		if c.Name == authTokenCookieName && !c.HttpOnly {
			t.Fatal("auth cookie must be HttpOnly")
		}
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, authTokenCookieName) || !strings.Contains(joined, csrfCookieName) {
		t.Fatalf("expected auth and csrf cookies, got %v", names)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"missing password", map[string]string{"email": "a@example.com"}},
		{"invalid email", map[string]string{"email": "not-an-email", "password": "correct-horse-battery"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := env.performJSONRequest(t, http.MethodPost, "/api/v1/auth/register", "", tt.payload)
			if status != fiber.StatusBadRequest || resp.Success {
				t.Fatalf("expected 400, got %d (%q)", status, resp.Error)
			}
		})
	}
}

func TestRegisterDuplicateAndSingleUserMode(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "a@example.com")

	status, _ := env.performJSONRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "A@example.com", "password": "correct-horse-battery",
	})
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", status)
	}

	single := newTestEnv(t, func(cfg *config.Config) { cfg.UI.SingleUserMode = true })
	single.register(t, "owner@example.com")
	status, _ = single.performJSONRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "second@example.com", "password": "correct-horse-battery",
	})
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 in single user mode, got %d", status)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "a@example.com")

	for _, email := range []string{"a@example.com", "nobody@example.com"} {
		status, resp := env.performJSONRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": email, "password": "wrong-password",
		})
		if status != fiber.StatusUnauthorized || resp.Error != "invalid credentials" {
			t.Fatalf("%s: expected 401 invalid credentials, got %d %q", email, status, resp.Error)
		}
	}
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.performJSONRequest(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	status, _ = env.performJSONRequest(t, http.MethodGet, "/api/v1/auth/me", "not-a-jwt", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
}

func TestStorageQuota(t *testing.T) {
	env := newTestEnv(t, nil)
	token, user := env.register(t, "a@example.com")

	status, resp := env.performJSONRequest(t, http.MethodGet, "/api/v1/auth/storage/quota", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("quota: status=%d error=%q", status, resp.Error)
	}
	var unlimited map[string]interface{}
	if err := json.Unmarshal(resp.Data, &unlimited); err != nil {
		t.Fatalf("decode quota: %v", err)
	}
	if unlimited["has_quota"] != false || unlimited["quota"] != "" {
		t.Fatalf("expected no quota, got %v", unlimited)
	}

	if _, err := env.quotaSvc.SetQuota(user.ID, 1000); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}
	if _, err := env.quotaSvc.SetUsage(user.ID, 1500); err != nil {
		t.Fatalf("SetUsage: %v", err)
	}

	status, resp = env.performJSONRequest(t, http.MethodGet, "/api/v1/auth/storage/quota", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("quota: status=%d error=%q", status, resp.Error)
	}
	var over struct {
		Used       string      `json:"used"`
		Quota      string      `json:"quota"`
		Percentage float64     `json:"percentage"`
		OverQuota  bool        `json:"over_quota"`
		DeadlineAt interface{} `json:"deadline_at"`
	}
	if err := json.Unmarshal(resp.Data, &over); err != nil {
		t.Fatalf("decode quota: %v", err)
	}
	if over.Used != "1.5 GB" || over.Quota != "1.0 GB" {
		t.Fatalf("unexpected sizes %+v", over)
	}
	if !over.OverQuota || over.Percentage != 150 || over.DeadlineAt == nil {
		t.Fatalf("expected over quota with deadline, got %+v", over)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "a@example.com")

	status, resp := env.performJSONRequest(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if status != fiber.StatusOK || !resp.Success {
		t.Fatalf("logout: status=%d error=%q", status, resp.Error)
	}
}
