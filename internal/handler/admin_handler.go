package handler

import (
	"database/sql"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/media"
	"github.com/odmhub/odmhub/internal/repository"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/response"
	"github.com/odmhub/odmhub/pkg/sanitize"
)

type AdminHandler struct {
	settingsSvc *service.SettingsService
	quotaSvc    *service.QuotaService
	userRepo    *repository.UserRepository
	storage     *media.Storage
}

func NewAdminHandler(
	settingsSvc *service.SettingsService,
	quotaSvc *service.QuotaService,
	userRepo *repository.UserRepository,
	storage *media.Storage,
) *AdminHandler {
	return &AdminHandler{
		settingsSvc: settingsSvc,
		quotaSvc:    quotaSvc,
		userRepo:    userRepo,
		storage:     storage,
	}
}

// GetSettings returns all app settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settingsSvc.GetAllSettings()
	if err != nil {
		return response.InternalError(c, "failed to load settings")
	}
	return response.Success(c, settings)
}

// UpdateSettings modifies the text settings.
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Settings map[string]string `json:"settings"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Settings) == 0 {
		return response.BadRequest(c, "no settings provided")
	}

	if err := h.settingsSvc.UpdateSettings(req.Settings); err != nil {
		if errors.Is(err, service.ErrUnknownSetting) || errors.Is(err, service.ErrInvalidWebsite) {
			return response.BadRequest(c, err.Error())
		}
		logger.Error().Err(err).Msg("Failed to update settings")
		return response.InternalError(c, "failed to update settings")
	}

	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	logger.Audit("settings_updated", localUserID(c), map[string]string{
		"keys": strings.Join(keys, ","),
	})

	return response.Success(c, h.settingsSvc.Snapshot())
}

// UploadImage stores a new branding image for one of the image settings
// and removes the file it replaces.
func (h *AdminHandler) UploadImage(c *fiber.Ctx) error {
	field := c.Params("field")
	if !slices.Contains(service.ImageFields, field) {
		return response.NotFound(c, "unknown image setting")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return response.BadRequest(c, "image file is required")
	}
	if fh.Size > media.MaxImageSize {
		RecordImageUpload(field, "too_large")
		return response.Error(c, fiber.StatusRequestEntityTooLarge, media.ErrTooLarge.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return response.BadRequest(c, "failed to read upload")
	}
	defer f.Close()

	name, err := h.storage.Save(f)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrInvalidImage):
			RecordImageUpload(field, "rejected")
			return response.Error(c, fiber.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, media.ErrTooLarge):
			RecordImageUpload(field, "too_large")
			return response.Error(c, fiber.StatusRequestEntityTooLarge, err.Error())
		default:
			RecordImageUpload(field, "error")
			logger.FromContext(c.UserContext()).Error().Err(err).Str("field", field).Msg("Failed to store settings image")
			return response.InternalError(c, "failed to store image")
		}
	}

	previous, err := h.settingsSvc.SetImage(field, name)
	if err != nil {
		_ = h.storage.Delete(name)
		RecordImageUpload(field, "error")
		logger.Error().Err(err).Str("field", field).Msg("Failed to save image setting")
		return response.InternalError(c, "failed to save image setting")
	}
	if previous != "" && previous != name {
		if err := h.storage.Delete(previous); err != nil {
			logger.Warn().Err(err).Str("name", previous).Msg("Failed to remove replaced settings image")
		}
	}

	RecordImageUpload(field, "stored")
	logger.Audit("settings_image_updated", localUserID(c), map[string]string{
		"field":    field,
		"name":     name,
		"filename": sanitize.Filename(fh.Filename),
	})

	return response.Success(c, map[string]string{
		"field": field,
		"name":  name,
		"url":   "/media/" + name,
	})
}

// ListUsers returns all users with quota info.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.userRepo.ListAll()
	if err != nil {
		return response.InternalError(c, "failed to list users")
	}
	return response.Success(c, users)
}

// SetUserQuota changes a user's quota. A negative quota_mb removes it.
func (h *AdminHandler) SetUserQuota(c *fiber.Ctx) error {
	targetID := c.Params("id")
	if targetID == "" {
		return response.BadRequest(c, "user ID is required")
	}

	var req struct {
		QuotaMB *int64 `json:"quota_mb"`
		UsedMB  *int64 `json:"used_mb"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.QuotaMB == nil && req.UsedMB == nil {
		return response.BadRequest(c, "quota_mb or used_mb is required")
	}

	if _, err := h.userRepo.GetByID(targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, "user not found")
		}
		return response.InternalError(c, "failed to load user")
	}

	var err error
	if req.UsedMB != nil {
		if _, err = h.quotaSvc.SetUsage(targetID, *req.UsedMB); err != nil {
			logger.Error().Err(err).Str("user_id", targetID).Msg("Failed to set usage")
			return response.InternalError(c, "failed to update usage")
		}
	}
	if req.QuotaMB != nil {
		if _, err = h.quotaSvc.SetQuota(targetID, *req.QuotaMB); err != nil {
			logger.Error().Err(err).Str("user_id", targetID).Msg("Failed to set quota")
			return response.InternalError(c, "failed to update quota")
		}
	}

	user, err := h.userRepo.GetByID(targetID)
	if err != nil {
		return response.InternalError(c, "failed to load user")
	}

	logger.Audit("user_quota_updated", localUserID(c), map[string]string{
		"target_user_id": targetID,
	})

	return response.Success(c, h.quotaSvc.StorageInfo(user))
}

// SetUserAdmin grants or revokes admin rights. The last admin cannot be
// demoted, including by themselves.
func (h *AdminHandler) SetUserAdmin(c *fiber.Ctx) error {
	targetID := c.Params("id")
	if targetID == "" {
		return response.BadRequest(c, "user ID is required")
	}

	var req struct {
		IsAdmin *bool `json:"is_admin"`
	}
	if err := c.BodyParser(&req); err != nil || req.IsAdmin == nil {
		return response.BadRequest(c, "is_admin is required")
	}

	user, err := h.userRepo.GetByID(targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, "user not found")
		}
		return response.InternalError(c, "failed to load user")
	}

	if user.IsAdmin && !*req.IsAdmin {
		admins, err := h.userRepo.CountAdmins()
		if err != nil {
			return response.InternalError(c, "failed to count admins")
		}
		if admins <= 1 {
			return response.BadRequest(c, "cannot demote the last admin")
		}
	}

	if err := h.userRepo.SetAdmin(targetID, *req.IsAdmin); err != nil {
		logger.Error().Err(err).Str("user_id", targetID).Msg("Failed to change admin flag")
		return response.InternalError(c, "failed to update user")
	}

	logger.Audit("user_admin_changed", localUserID(c), map[string]string{
		"target_user_id": targetID,
		"is_admin":       strconv.FormatBool(*req.IsAdmin),
	})

	return response.Success(c, map[string]interface{}{
		"id":       targetID,
		"is_admin": *req.IsAdmin,
	})
}
