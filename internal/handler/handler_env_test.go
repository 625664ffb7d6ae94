package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/config"
	"github.com/odmhub/odmhub/internal/i18n"
	"github.com/odmhub/odmhub/internal/media"
	"github.com/odmhub/odmhub/internal/models"
	"github.com/odmhub/odmhub/internal/repository"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/internal/templatetags"
	"github.com/odmhub/odmhub/pkg/testutil"
)

type apiTestResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	app         *fiber.App
	authSvc     *service.AuthService
	quotaSvc    *service.QuotaService
	settingsSvc *service.SettingsService
	userRepo    *repository.UserRepository
	storage     *media.Storage
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret-key-for-handler-tests",
			TokenDuration: 24,
		},
		UI: config.UIConfig{
			TaskOptionsDocsLink: "https://docs.example/arguments/",
			GCPDocsLink:         "https://docs.example/gcp/",
			ResetPasswordLink:   "https://accounts.example/reset",
			GracePeriodHours:    72,
			DefaultLanguage:     "en",
		},
	}
}

// newTestEnv wires the application routes the same way the server does,
// against a temporary database and media root.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	db, paths, cleanup := testutil.SetupTest(t)
	t.Cleanup(cleanup)

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	userRepo := repository.NewUserRepository(db)
	settingsSvc := service.NewSettingsService(repository.NewSettingsRepository(db))
	quotaSvc := service.NewQuotaService(userRepo, cfg.UI.GracePeriodHours)
	authSvc := service.NewAuthService(userRepo, cfg)

	storage, err := media.NewStorage(paths.MediaRoot)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	catalog := i18n.NewCatalog(cfg.UI.DefaultLanguage)
	tags := templatetags.New(cfg.UI, catalog, storage)
	pageHandler, err := NewPageHandler(tags, catalog, settingsSvc, quotaSvc)
	if err != nil {
		t.Fatalf("NewPageHandler: %v", err)
	}
	authHandler := NewAuthHandler(authSvc, quotaSvc, false, 24*time.Hour)
	adminHandler := NewAdminHandler(settingsSvc, quotaSvc, userRepo, storage)

	app := fiber.New()
	app.Use(RequestIDMiddleware())

	optionalAuth := OptionalAuthMiddleware(authSvc)
	requireAuth := AuthMiddleware(authSvc)

	app.Get("/", PageSecurityHeadersMiddleware(), optionalAuth, pageHandler.Dashboard)
	app.Static("/media", storage.Root())

	api := app.Group("/api/v1", SecurityHeadersMiddleware())
	api.Get("/ui", optionalAuth, pageHandler.UIValues)

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", requireAuth, CSRFMiddleware(), authHandler.Logout)
	auth.Get("/me", requireAuth, authHandler.GetMe)
	auth.Get("/storage/quota", requireAuth, authHandler.StorageQuota)

	admin := api.Group("/admin", requireAuth, AdminMiddleware(authSvc), CSRFMiddleware())
	admin.Get("/settings", adminHandler.GetSettings)
	admin.Put("/settings", adminHandler.UpdateSettings)
	admin.Post("/settings/images/:field", adminHandler.UploadImage)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/quota", adminHandler.SetUserQuota)
	admin.Put("/users/:id/admin", adminHandler.SetUserAdmin)

	return &testEnv{
		app:         app,
		authSvc:     authSvc,
		quotaSvc:    quotaSvc,
		settingsSvc: settingsSvc,
		userRepo:    userRepo,
		storage:     storage,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, raw
}

// performJSONRequest sends payload as JSON, with a bearer token when token
// is non-empty, and decodes the API envelope.
func (e *testEnv) performJSONRequest(
	t *testing.T,
	method, path, token string,
	payload interface{},
) (int, apiTestResponse) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, raw := e.do(t, req)

	var parsed apiTestResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal response body: %v, body=%s", err, string(raw))
	}
	return resp.StatusCode, parsed
}

// register creates an account through the API and returns its token.
func (e *testEnv) register(t *testing.T, email string) (string, *models.User) {
	t.Helper()

	status, resp := e.performJSONRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse-battery",
	})
	if status != fiber.StatusCreated || !resp.Success {
		t.Fatalf("register %s: status=%d error=%q", email, status, resp.Error)
	}

	var data struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return data.Token, data.User
}
