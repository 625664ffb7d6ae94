package templatetags

import (
	"html/template"
)

// FuncMap exposes the tags to html/template. Tags that read per-request data
// take the *Context as their first argument:
//
//	{{ get_footer .Tags }}
//	{{ settings_image_url .Tags "app_logo" }}
//	{{ disk_size .UsedMB }} ({{ percentage .UsedMB .QuotaMB 100 }}%)
func (t *Tags) FuncMap() template.FuncMap {
	return template.FuncMap{
		"task_options_docs_link": t.TaskOptionsDocsLink,
		"gcp_docs_link": func() template.HTML {
			// #nosec G203 -- built from operator configuration.
			return template.HTML(t.GCPDocsLink())
		},
		"reset_password_link":         t.ResetPasswordLink,
		"has_external_auth":           t.HasExternalAuth,
		"is_single_user_mode":         t.IsSingleUserMode,
		"is_desktop_mode":             t.IsDesktopMode,
		"is_dev_mode":                 t.IsDevMode,
		"disk_size":                   DiskSize,
		"percentage":                  Percentage,
		"quota_exceeded_grace_period": t.QuotaExceededGracePeriod,
		"settings_image_url":          t.SettingsImageURL,
		"get_footer": func(ctx *Context) template.HTML {
			// #nosec G203 -- footer markup is administrator-controlled.
			return template.HTML(t.Footer(ctx))
		},
	}
}

// Values evaluates every tag for ctx, keyed by template name.
func (t *Tags) Values(ctx *Context, images []string) map[string]any {
	urls := make(map[string]string, len(images))
	for _, field := range images {
		urls[field] = t.SettingsImageURL(ctx, field)
	}
	return map[string]any{
		"task_options_docs_link":      t.TaskOptionsDocsLink(),
		"gcp_docs_link":               t.GCPDocsLink(),
		"reset_password_link":         t.ResetPasswordLink(),
		"has_external_auth":           t.HasExternalAuth(),
		"is_single_user_mode":         t.IsSingleUserMode(),
		"is_desktop_mode":             t.IsDesktopMode(),
		"is_dev_mode":                 t.IsDevMode(),
		"quota_exceeded_grace_period": t.QuotaExceededGracePeriod(ctx),
		"settings_image_url":          urls,
		"get_footer":                  t.Footer(ctx),
	}
}
