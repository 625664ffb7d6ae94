package templatetags

import (
	"fmt"
	"strconv"
	"strings"
)

// Footer renders the theme footer. The {ORGANIZATION} token becomes a link
// to the organization website (or the bare name when no website is set) and
// {YEAR} becomes the current year. Settings are trusted and not escaped.
func (t *Tags) Footer(ctx *Context) string {
	settings, ok := ctx.Settings()
	if !ok {
		warnMissingSettings("get_footer")
		return ""
	}
	if settings.Theme.HTMLFooter == "" {
		return ""
	}

	organization := ""
	switch {
	case settings.OrganizationName != "" && settings.OrganizationWebsite != "":
		organization = fmt.Sprintf("<a href='%s'>%s</a>", settings.OrganizationWebsite, settings.OrganizationName)
	case settings.OrganizationName != "":
		organization = settings.OrganizationName
	}

	footer := strings.ReplaceAll(settings.Theme.HTMLFooter, "{ORGANIZATION}", organization)
	footer = strings.ReplaceAll(footer, "{YEAR}", strconv.Itoa(t.now().Year()))

	return "<footer>" + footer + "</footer>"
}
