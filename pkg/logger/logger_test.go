package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestInitLevelFiltering(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})

	Info().Msg("hidden")
	Warn().Str("tag", "get_footer").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"tag":"get_footer"`) {
		t.Fatalf("expected warn message with tag field, got: %s", out)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "chatty", Output: &buf})

	Debug().Msg("debug")
	Info().Msg("info")
	if strings.Contains(buf.String(), `"message":"debug"`) {
		t.Fatalf("debug should be filtered, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Fatalf("expected info message, got: %s", buf.String())
	}
}

func TestNamedAndContextHelpers(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})

	named := DefaultLogger.Named("templatetags")
	named.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"component":"templatetags"`) {
		t.Fatalf("expected component field, got: %s", buf.String())
	}

	ctx := ContextWithLogger(context.Background(), named)
	if got := FromContext(ctx); got != named {
		t.Fatal("expected logger from context")
	}
	if got := FromContext(context.Background()); got != DefaultLogger {
		t.Fatal("expected default logger for empty context")
	}
}

func TestAuditAndMiddleware(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	Audit("settings_updated", "user-123", map[string]string{"k": "v"})
	if !strings.Contains(buf.String(), `"log_type":"audit"`) {
		t.Fatalf("expected audit entry, got: %s", buf.String())
	}

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ok", func(c *fiber.Ctx) error {
		c.Locals("request_id", "rid-1")
		return c.SendStatus(fiber.StatusAccepted)
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return fiber.ErrBadRequest
	})

	okResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil), -1)
	if err != nil {
		t.Fatalf("app.Test /ok: %v", err)
	}
	defer okResp.Body.Close()
	if okResp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected %d, got %d", fiber.StatusAccepted, okResp.StatusCode)
	}
	if !strings.Contains(buf.String(), `"request_id":"rid-1"`) {
		t.Fatalf("expected request id in access log, got: %s", buf.String())
	}

	failResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil), -1)
	if err != nil {
		t.Fatalf("app.Test /fail: %v", err)
	}
	defer failResp.Body.Close()
	if failResp.StatusCode == fiber.StatusAccepted {
		t.Fatal("expected non-success status for failing route")
	}
}
