// Package i18n holds the message catalog used by page templates.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key. Counts are passed
// preformatted as strings so they render without locale digit grouping.
const (
	InDays    = "in %s days"
	InHours   = "in %s hours"
	InMinutes = "in %s minutes"
	VerySoon  = "very soon"

	QuotaExceededNotice = "Storage quota exceeded. Free up space or some tasks will be removed"
)

var translations = map[language.Tag]map[string]string{
	language.English: {
		InDays:    "in %s days",
		InHours:   "in %s hours",
		InMinutes: "in %s minutes",
		VerySoon:  "very soon",

		QuotaExceededNotice: QuotaExceededNotice,
	},
	language.Italian: {
		InDays:    "tra %s giorni",
		InHours:   "tra %s ore",
		InMinutes: "tra %s minuti",
		VerySoon:  "molto presto",

		QuotaExceededNotice: "Quota di archiviazione superata. Libera spazio o alcune attività verranno rimosse",
	},
	language.Spanish: {
		InDays:    "en %s días",
		InHours:   "en %s horas",
		InMinutes: "en %s minutos",
		VerySoon:  "muy pronto",

		QuotaExceededNotice: "Cuota de almacenamiento superada. Libera espacio o algunas tareas serán eliminadas",
	},
	language.German: {
		InDays:    "in %s Tagen",
		InHours:   "in %s Stunden",
		InMinutes: "in %s Minuten",
		VerySoon:  "sehr bald",

		QuotaExceededNotice: "Speicherkontingent überschritten. Gib Speicherplatz frei, sonst werden einige Aufgaben entfernt",
	},
}

// Catalog resolves message keys for a set of supported languages.
type Catalog struct {
	cat      *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

// NewCatalog builds the catalog. fallback is used when a request names no
// supported language; an unparsable or unsupported fallback means English.
func NewCatalog(fallback string) *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	// English first so the matcher prefers it on ties.
	tags := []language.Tag{language.English, language.Italian, language.Spanish, language.German}
	for _, tag := range tags {
		for key, msg := range translations[tag] {
			// SetString only fails on malformed tags; these are constants.
			_ = b.SetString(tag, key, msg)
		}
	}

	c := &Catalog{
		cat:      b,
		matcher:  language.NewMatcher(tags),
		fallback: language.English,
	}
	c.fallback = c.Match(fallback)
	return c
}

// Match picks the best supported language for an Accept-Language header
// or a bare language code.
func (c *Catalog) Match(accept string) language.Tag {
	if accept == "" {
		return c.fallback
	}
	desired, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(desired) == 0 {
		return c.fallback
	}
	tag, _, conf := c.matcher.Match(desired...)
	if conf == language.No {
		return c.fallback
	}
	base, _ := tag.Base()
	return language.Make(base.String())
}

// Fallback returns the catalog's default language.
func (c *Catalog) Fallback() language.Tag {
	return c.fallback
}

// Sprintf formats the message for key in lang.
func (c *Catalog) Sprintf(lang language.Tag, key string, args ...any) string {
	p := message.NewPrinter(lang, message.Catalog(c.cat))
	return p.Sprintf(key, args...)
}
