package templatetags

import (
	"time"

	"github.com/odmhub/odmhub/internal/models"
	"golang.org/x/text/language"
)

// QuotaHolder is the current user as seen by the grace-period tag.
type QuotaHolder interface {
	QuotaDeadline() *time.Time
}

// Context carries the per-request values a page render exposes to the tags.
// The zero value is valid and has neither settings nor a user.
type Context struct {
	settings *models.Settings
	user     QuotaHolder
	lang     language.Tag
}

func NewContext(settings *models.Settings, user QuotaHolder, lang language.Tag) *Context {
	return &Context{settings: settings, user: user, lang: lang}
}

// Settings returns the branding settings, or false when the render was not
// given any.
func (c *Context) Settings() (*models.Settings, bool) {
	if c == nil || c.settings == nil {
		return nil, false
	}
	return c.settings, true
}

// QuotaDeadline returns the current user's stored deadline, if any.
func (c *Context) QuotaDeadline() *time.Time {
	if c == nil || c.user == nil {
		return nil
	}
	return c.user.QuotaDeadline()
}

// Language returns the request language, or language.Und when unset.
func (c *Context) Language() language.Tag {
	if c == nil {
		return language.Und
	}
	return c.lang
}

// UserDeadline adapts a stored user to QuotaHolder.
type UserDeadline struct {
	User *models.User
}

func (u UserDeadline) QuotaDeadline() *time.Time {
	if u.User == nil {
		return nil
	}
	return u.User.QuotaDeadline
}
