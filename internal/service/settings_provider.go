package service

import "github.com/odmhub/odmhub/internal/models"

// SettingsProvider provides the runtime-configurable branding settings.
type SettingsProvider interface {
	Snapshot() *models.Settings
}
