// Package templatetags provides the helper functions available to the
// server-rendered pages: settings accessors, size and percentage formatting,
// the quota grace-period countdown, settings images and the themed footer.
//
// Every function is stateless. Configuration is injected once through New
// and never mutated; per-request data arrives through a *Context.
package templatetags

import (
	"fmt"
	"time"

	"github.com/odmhub/odmhub/internal/config"
	"github.com/odmhub/odmhub/internal/i18n"
)

// ImageResolver maps a stored image name to its path under /media/.
type ImageResolver interface {
	Resolve(name string) (string, error)
}

type Tags struct {
	cfg     config.UIConfig
	catalog *i18n.Catalog
	images  ImageResolver
	now     func() time.Time
}

// New returns tags bound to cfg. cfg is copied, so later changes to the
// caller's value are not observed.
func New(cfg config.UIConfig, catalog *i18n.Catalog, images ImageResolver) *Tags {
	if catalog == nil {
		catalog = i18n.NewCatalog(cfg.DefaultLanguage)
	}
	return &Tags{
		cfg:     cfg,
		catalog: catalog,
		images:  images,
		now:     time.Now,
	}
}

// WithClock returns a copy of t that reads the current time from now.
func (t *Tags) WithClock(now func() time.Time) *Tags {
	cp := *t
	cp.now = now
	return &cp
}

func (t *Tags) TaskOptionsDocsLink() string {
	return t.cfg.TaskOptionsDocsLink
}

// GCPDocsLink returns the opening anchor tag for the GCP documentation.
// The caller closes the tag around its own link text.
func (t *Tags) GCPDocsLink() string {
	return fmt.Sprintf(`<a href="%s" target="_blank">`, t.cfg.GCPDocsLink)
}

func (t *Tags) ResetPasswordLink() string {
	return t.cfg.ResetPasswordLink
}

func (t *Tags) HasExternalAuth() bool {
	return t.cfg.ExternalAuthEndpoint != ""
}

func (t *Tags) IsSingleUserMode() bool {
	return t.cfg.SingleUserMode
}

func (t *Tags) IsDesktopMode() bool {
	return t.cfg.DesktopMode
}

func (t *Tags) IsDevMode() bool {
	return t.cfg.DevMode
}
