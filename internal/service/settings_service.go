package service

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/odmhub/odmhub/internal/models"
	"github.com/odmhub/odmhub/internal/repository"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/sanitize"
)

var (
	ErrUnknownSetting = errors.New("unknown setting key")
	ErrUnknownImage   = errors.New("unknown settings image field")
	ErrInvalidWebsite = errors.New("organization_website must be an http(s) URL")
)

// ImageFields are the settings keys that hold uploaded image references.
var ImageFields = []string{"app_logo", "app_logo_36", "app_logo_favicon"}

var textFields = map[string]bool{
	"app_name":             true,
	"organization_name":    true,
	"organization_website": true,
	"theme_html_footer":    true,
	"theme_primary":        true,
	"theme_secondary":      true,
}

func isImageField(key string) bool {
	for _, f := range ImageFields {
		if f == key {
			return true
		}
	}
	return false
}

type SettingsService struct {
	settingsRepo *repository.SettingsRepository
	cache        map[string]string
	snapshot     *models.Settings
	mu           sync.RWMutex
}

func NewSettingsService(settingsRepo *repository.SettingsRepository) *SettingsService {
	svc := &SettingsService{
		settingsRepo: settingsRepo,
		cache:        make(map[string]string),
	}
	svc.RefreshCache()
	return svc
}

func (s *SettingsService) RefreshCache() {
	settings, err := s.settingsRepo.GetAll()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to refresh settings cache")
		return
	}

	cache := make(map[string]string, len(settings))
	for _, setting := range settings {
		cache[setting.Key] = setting.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
	s.snapshot = buildSnapshot(cache)
}

func buildSnapshot(values map[string]string) *models.Settings {
	images := make(map[string]models.ImageRef, len(ImageFields))
	for _, f := range ImageFields {
		if v := values[f]; v != "" {
			images[f] = models.ImageRef{Name: v}
		}
	}
	return &models.Settings{
		AppName:             values["app_name"],
		OrganizationName:    values["organization_name"],
		OrganizationWebsite: values["organization_website"],
		Theme: models.Theme{
			HTMLFooter: values["theme_html_footer"],
			Primary:    values["theme_primary"],
			Secondary:  values["theme_secondary"],
		},
		Images: images,
	}
}

func (s *SettingsService) GetCachedSetting(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

// Snapshot returns the current settings. The returned value is shared and
// must be treated as read-only; updates replace it rather than mutate it.
func (s *SettingsService) Snapshot() *models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return buildSnapshot(nil)
	}
	return s.snapshot
}

func (s *SettingsService) GetAllSettings() ([]*models.AppSetting, error) {
	return s.settingsRepo.GetAll()
}

// cleanSettings sanitizes text settings and validates the website URL.
func cleanSettings(values map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(values))
	for k, v := range values {
		if !textFields[k] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, k)
		}
		v = sanitize.SettingValue(v)
		if k != "theme_html_footer" {
			v = strings.TrimSpace(v)
		}
		clean[k] = v
	}

	if website, ok := clean["organization_website"]; ok && website != "" {
		u, err := url.Parse(website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidWebsite
		}
	}
	return clean, nil
}

// UpdateSettings validates and stores text settings. Image fields are only
// changed through SetImage.
func (s *SettingsService) UpdateSettings(updates map[string]string) error {
	clean, err := cleanSettings(updates)
	if err != nil {
		return err
	}
	if err := s.settingsRepo.SetMany(clean); err != nil {
		return err
	}
	s.RefreshCache()
	return nil
}

// SetImage points an image field at a stored media name and returns the
// name it replaced.
func (s *SettingsService) SetImage(field, storedName string) (string, error) {
	if !isImageField(field) {
		return "", fmt.Errorf("%w: %s", ErrUnknownImage, field)
	}
	previous := s.GetCachedSetting(field)
	if err := s.settingsRepo.Set(field, storedName); err != nil {
		return "", err
	}
	s.RefreshCache()
	return previous, nil
}

// Seed fills settings that are still empty, e.g. from a branding file.
// Values go through the same cleaning as UpdateSettings.
func (s *SettingsService) Seed(values map[string]string) error {
	clean, err := cleanSettings(values)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := s.settingsRepo.SeedMany(clean); err != nil {
		return err
	}
	s.RefreshCache()
	logger.Info().Strs("keys", keys).Msg("Branding settings seeded")
	return nil
}
