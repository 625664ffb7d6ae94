package handler

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *sql.DB
	mediaRoot string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, mediaRoot string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mediaRoot: mediaRoot,
	}
}

// Liveness reports that the process is serving requests.
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness checks the database and the media root.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	checks := fiber.Map{}
	allHealthy := true

	for name, check := range map[string]func() error{
		"database": h.checkDatabase,
		"media":    h.checkMedia,
	} {
		if err := check(); err != nil {
			checks[name] = fiber.Map{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			continue
		}
		checks[name] = fiber.Map{"status": "healthy"}
	}

	status := "ok"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

func (h *HealthHandler) checkDatabase() error {
	if h.db == nil {
		return ErrDatabaseNotInitialized
	}
	return h.db.Ping()
}

// checkMedia verifies uploads can be written to the media root.
func (h *HealthHandler) checkMedia() error {
	if err := os.MkdirAll(h.mediaRoot, 0750); err != nil {
		return fmt.Errorf("%w: %v", ErrMediaNotAccessible, err)
	}

	testFile := filepath.Join(h.mediaRoot, ".healthcheck")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaNotAccessible, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}
