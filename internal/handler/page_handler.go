package handler

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/internal/i18n"
	"github.com/odmhub/odmhub/internal/models"
	"github.com/odmhub/odmhub/internal/service"
	"github.com/odmhub/odmhub/internal/templatetags"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/response"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the server-side pages and the tag values API.
type PageHandler struct {
	tags      *templatetags.Tags
	catalog   *i18n.Catalog
	settings  service.SettingsProvider
	quotaSvc  *service.QuotaService
	dashboard *template.Template
}

func NewPageHandler(
	tags *templatetags.Tags,
	catalog *i18n.Catalog,
	settings service.SettingsProvider,
	quotaSvc *service.QuotaService,
) (*PageHandler, error) {
	dashboard, err := template.New("dashboard.html").
		Funcs(tags.FuncMap()).
		Funcs(template.FuncMap{
			"trans": func(ctx *templatetags.Context, key string) string {
				return catalog.Sprintf(ctx.Language(), key)
			},
		}).
		ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		tags:      tags,
		catalog:   catalog,
		settings:  settings,
		quotaSvc:  quotaSvc,
		dashboard: dashboard,
	}, nil
}

// dashboardView is the data passed to dashboard.html. Sizes are float64
// because that is what disk_size and percentage take.
type dashboardView struct {
	Tags      *templatetags.Context
	Settings  *models.Settings
	User      *models.User
	Lang      string
	UsedMB    float64
	QuotaMB   float64
	HasQuota  bool
	OverQuota bool
}

// currentUser loads the signed-in user, refreshing the quota deadline on
// the way. Anonymous requests and stale tokens yield nil.
func (h *PageHandler) currentUser(c *fiber.Ctx) *models.User {
	userID := localUserID(c)
	if userID == "" {
		return nil
	}
	user, err := h.quotaSvc.Refresh(userID)
	if err != nil {
		logger.Debug().Err(err).Str("user_id", userID).Msg("Page request for unknown user")
		return nil
	}
	return user
}

func (h *PageHandler) tagContext(c *fiber.Ctx, user *models.User) *templatetags.Context {
	var holder templatetags.QuotaHolder
	if user != nil {
		holder = templatetags.UserDeadline{User: user}
	}
	lang := h.catalog.Match(c.Get(fiber.HeaderAcceptLanguage))
	return templatetags.NewContext(h.settings.Snapshot(), holder, lang)
}

// Dashboard handles GET /.
func (h *PageHandler) Dashboard(c *fiber.Ctx) error {
	user := h.currentUser(c)
	ctx := h.tagContext(c, user)
	settings, _ := ctx.Settings()

	view := dashboardView{
		Tags:     ctx,
		Settings: settings,
		User:     user,
		Lang:     ctx.Language().String(),
	}
	if user != nil {
		view.UsedMB = float64(user.UsedMB)
		view.QuotaMB = float64(user.QuotaMB)
		view.HasQuota = user.HasQuota()
		view.OverQuota = user.IsOverQuota()
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.dashboard.Execute(&buf, view); err != nil {
		logger.FromContext(c.UserContext()).Named("pages").Error().Err(err).Msg("Failed to render dashboard")
		return response.InternalError(c, "failed to render page")
	}
	RecordPageRender("dashboard", time.Since(start))

	return response.HTML(c, buf.Bytes())
}

// UIValues handles GET /api/v1/ui: every tag evaluated for this request.
func (h *PageHandler) UIValues(c *fiber.Ctx) error {
	user := h.currentUser(c)
	ctx := h.tagContext(c, user)

	values := h.tags.Values(ctx, service.ImageFields)
	values["language"] = ctx.Language().String()
	if user != nil {
		values["disk_size"] = templatetags.DiskSize(float64(user.UsedMB))
		if user.HasQuota() {
			values["percentage"] = templatetags.Percentage(float64(user.UsedMB), float64(user.QuotaMB), 100)
		}
	}
	return response.Success(c, values)
}
