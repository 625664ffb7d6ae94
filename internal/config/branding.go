package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Branding is the optional seed for the organization and theme settings.
// Values are written to the settings store only when the store has none.
type Branding struct {
	AppName             string `yaml:"app_name"`
	OrganizationName    string `yaml:"organization_name"`
	OrganizationWebsite string `yaml:"organization_website"`
	Theme               struct {
		HTMLFooter string `yaml:"html_footer"`
		Primary    string `yaml:"primary"`
		Secondary  string `yaml:"secondary"`
	} `yaml:"theme"`
}

// LoadBranding reads a branding YAML file. An empty path yields nil.
func LoadBranding(path string) (*Branding, error) {
	if path == "" {
		return nil, nil
	}

	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read branding file: %w", err)
	}

	var b Branding
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse branding file: %w", err)
	}
	return &b, nil
}

// Values flattens the branding into settings keys, skipping empty fields.
func (b *Branding) Values() map[string]string {
	out := map[string]string{}
	if b == nil {
		return out
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("app_name", b.AppName)
	set("organization_name", b.OrganizationName)
	set("organization_website", b.OrganizationWebsite)
	set("theme_html_footer", b.Theme.HTMLFooter)
	set("theme_primary", b.Theme.Primary)
	set("theme_secondary", b.Theme.Secondary)
	return out
}
