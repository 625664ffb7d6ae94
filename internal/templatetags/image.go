package templatetags

import (
	"github.com/odmhub/odmhub/pkg/logger"
)

// SettingsImageURL returns the /media/ URL of the settings image stored in
// field. Missing settings, an unset field or a deleted file all log a
// warning and yield "".
func (t *Tags) SettingsImageURL(ctx *Context, field string) string {
	settings, ok := ctx.Settings()
	if !ok {
		warnMissingSettings("settings_image_url")
		return ""
	}

	ref, ok := settings.Image(field)
	if !ok || t.images == nil {
		tagWarnings.WithLabelValues("settings_image_url", reasonMissingImage).Inc()
		logger.Warn().Str("tag", "settings_image_url").Str("image", field).
			Msg("Settings image is not set")
		return ""
	}

	stored, err := t.images.Resolve(ref.Name)
	if err != nil {
		tagWarnings.WithLabelValues("settings_image_url", reasonMissingImage).Inc()
		logger.Warn().Err(err).Str("tag", "settings_image_url").Str("image", field).
			Msg("Cannot resolve settings image, it may have been deleted")
		return ""
	}
	return "/media/" + stored
}

func warnMissingSettings(tag string) {
	tagWarnings.WithLabelValues(tag, reasonMissingSettings).Inc()
	logger.Warn().Str("tag", tag).Msg("Render context has no settings")
}
