package sanitize

import (
	"strings"
	"unicode"
)

// MaxSettingLength caps a single stored setting value.
const MaxSettingLength = 8192

// Filename strips path separators, quotes and control characters so an
// uploaded file's original name is safe to log and echo back.
func Filename(filename string) string {
	filename = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '\\', '/':
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)

	filename = strings.TrimSpace(filename)
	filename = strings.Trim(filename, ".")
	if filename == "" {
		return "upload"
	}
	if len(filename) > 200 {
		filename = filename[:200]
	}
	return filename
}

// SettingValue removes control characters other than newlines and tabs from
// an administrator-supplied setting. Markup is kept as-is: settings such as
// the theme footer are trusted HTML.
func SettingValue(value string) string {
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)

	if len(value) > MaxSettingLength {
		value = value[:MaxSettingLength]
	}
	return value
}
