package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/models"
)

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newUploadRequest(t *testing.T, path, token string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "logo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "admin@example.com")
	userToken, _ := env.register(t, "user@example.com")

	status, _ := env.performJSONRequest(t, http.MethodGet, "/api/v1/admin/settings", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 anonymous, got %d", status)
	}
	status, _ = env.performJSONRequest(t, http.MethodGet, "/api/v1/admin/settings", userToken, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}
}

func TestAdminUpdateSettings(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "admin@example.com")

	status, resp := env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/settings", token, map[string]interface{}{
		"settings": map[string]string{
			"organization_name":    "  Acme Mapping ",
			"organization_website": "https://acme.example",
		},
	})
	if status != fiber.StatusOK {
		t.Fatalf("update: status=%d error=%q", status, resp.Error)
	}
	var snapshot models.Settings
	if err := json.Unmarshal(resp.Data, &snapshot); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if snapshot.OrganizationName != "Acme Mapping" || snapshot.OrganizationWebsite != "https://acme.example" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	tests := []struct {
		name     string
		settings map[string]string
	}{
		{"unknown key", map[string]string{"secret": "x"}},
		{"image field", map[string]string{"app_logo": "settings/x.png"}},
		{"bad website", map[string]string{"organization_website": "javascript:alert(1)"}},
		{"empty", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/settings", token,
				map[string]interface{}{"settings": tt.settings})
			if status != fiber.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
		})
	}
}

func TestAdminSettingsRequireCSRFForCookieSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "admin@example.com")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings",
		bytes.NewReader([]byte(`{"settings":{"app_name":"x"}}`)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: authTokenCookieName, Value: token})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "expected"})

	resp, _ := env.do(t, req)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 without csrf header, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings",
		bytes.NewReader([]byte(`{"settings":{"app_name":"x"}}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", "expected")
	req.AddCookie(&http.Cookie{Name: authTokenCookieName, Value: token})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "expected"})

	resp, _ = env.do(t, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with matching csrf token, got %d", resp.StatusCode)
	}
}

func TestAdminUploadImageReplacesPrevious(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "admin@example.com")

	upload := func() string {
		resp, raw := env.do(t, newUploadRequest(t, "/api/v1/admin/settings/images/app_logo", token, testPNG))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("upload: status=%d body=%s", resp.StatusCode, raw)
		}
		var parsed struct {
			Data map[string]string `json:"data"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("decode upload: %v", err)
		}
		return parsed.Data["name"]
	}

	first := upload()
	if _, err := env.storage.Resolve(first); err != nil {
		t.Fatalf("expected first upload stored: %v", err)
	}
	if got := env.settingsSvc.GetCachedSetting("app_logo"); got != first {
		t.Fatalf("expected setting %q, got %q", first, got)
	}

	second := upload()
	if second == first {
		t.Fatal("expected a new stored name")
	}
	if _, err := env.storage.Resolve(first); err == nil {
		t.Fatal("expected replaced image to be deleted")
	}

	mediaResp, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/media/"+second, nil))
	if mediaResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected stored image to be served, got %d", mediaResp.StatusCode)
	}
}

func TestAdminUploadImageRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "admin@example.com")

	resp, _ := env.do(t, newUploadRequest(t, "/api/v1/admin/settings/images/theme_primary", token, testPNG))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for non-image field, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, newUploadRequest(t, "/api/v1/admin/settings/images/app_logo", token, []byte("plain text, not an image")))
	if resp.StatusCode != fiber.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for non-image upload, got %d", resp.StatusCode)
	}
	if got := env.settingsSvc.GetCachedSetting("app_logo"); got != "" {
		t.Fatalf("setting must be unchanged, got %q", got)
	}
}

func TestAdminSetUserQuota(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "admin@example.com")
	_, user := env.register(t, "user@example.com")

	path := "/api/v1/admin/users/" + user.ID + "/quota"
	status, resp := env.performJSONRequest(t, http.MethodPut, path, token, map[string]int64{
		"quota_mb": 1000,
		"used_mb":  2500,
	})
	if status != fiber.StatusOK {
		t.Fatalf("set quota: status=%d error=%q", status, resp.Error)
	}
	var info models.StorageInfo
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		t.Fatalf("decode storage info: %v", err)
	}
	if !info.OverQuota || info.QuotaDeadline == nil {
		t.Fatalf("expected over quota with deadline, got %+v", info)
	}

	status, resp = env.performJSONRequest(t, http.MethodPut, path, token, map[string]int64{"quota_mb": -5})
	if status != fiber.StatusOK {
		t.Fatalf("remove quota: status=%d error=%q", status, resp.Error)
	}
	var cleared models.StorageInfo
	if err := json.Unmarshal(resp.Data, &cleared); err != nil {
		t.Fatalf("decode storage info: %v", err)
	}
	if cleared.QuotaMB != -1 || cleared.OverQuota || cleared.QuotaDeadline != nil {
		t.Fatalf("expected quota removed and deadline cleared, got %+v", cleared)
	}

	status, _ = env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/users/missing/quota", token, map[string]int64{"quota_mb": 1})
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", status)
	}

	status, resp = env.performJSONRequest(t, http.MethodGet, "/api/v1/admin/users", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("list users: status=%d error=%q", status, resp.Error)
	}
	var users []models.AdminUserInfo
	if err := json.Unmarshal(resp.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestAdminSetUserAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken, admin := env.register(t, "admin@example.com")
	_, user := env.register(t, "user@example.com")

	status, resp := env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/users/"+admin.ID+"/admin", adminToken,
		map[string]bool{"is_admin": false})
	if status != fiber.StatusBadRequest || resp.Error != "cannot demote the last admin" {
		t.Fatalf("expected last admin protection, got %d %q", status, resp.Error)
	}

	status, resp = env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/users/"+user.ID+"/admin", adminToken,
		map[string]bool{"is_admin": true})
	if status != fiber.StatusOK {
		t.Fatalf("promote: status=%d error=%q", status, resp.Error)
	}
	if stored, err := env.userRepo.GetByID(user.ID); err != nil || !stored.IsAdmin {
		t.Fatalf("expected user promoted, err=%v", err)
	}

	status, _ = env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/users/"+admin.ID+"/admin", adminToken,
		map[string]bool{"is_admin": false})
	if status != fiber.StatusOK {
		t.Fatalf("expected demotion with another admin present, got %d", status)
	}

	status, _ = env.performJSONRequest(t, http.MethodPut, "/api/v1/admin/users/"+user.ID+"/admin", adminToken,
		map[string]string{})
	if status != fiber.StatusForbidden {
		t.Fatalf("demoted admin must lose access, got %d", status)
	}
}
