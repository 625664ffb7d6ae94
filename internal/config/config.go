package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Media         MediaConfig
	Auth          AuthConfig
	UI            UIConfig
	Observability ObservabilityConfig
	BrandingFile  string
	IsProduction  bool
}

type ServerConfig struct {
	BindAddress    string
	Port           string
	AllowOrigins   string
	TrustedProxies []string
}

type DatabaseConfig struct {
	Path string
}

type MediaConfig struct {
	Root string
}

type AuthConfig struct {
	JWTSecret     string
	TokenDuration int // hours
}

// UIConfig holds the read-only values exposed to page templates.
type UIConfig struct {
	TaskOptionsDocsLink  string
	GCPDocsLink          string
	ResetPasswordLink    string
	ExternalAuthEndpoint string
	SingleUserMode       bool
	DesktopMode          bool
	DevMode              bool
	GracePeriodHours     int
	DefaultLanguage      string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsToken   string
}

func Load() *Config {
	loadDotEnvIfPresent()

	isProd := getEnv("ENVIRONMENT", "development") == "production"
	defaultSecret := ""
	if !isProd {
		defaultSecret = "dev-secret-change-in-production"
	}
	defaultBindAddress := "0.0.0.0"
	if isProd {
		defaultBindAddress = "127.0.0.1"
	}

	return &Config{
		IsProduction: isProd,
		BrandingFile: strings.TrimSpace(getEnv("BRANDING_FILE", "")),
		Server: ServerConfig{
			BindAddress:    getEnv("SERVER_BIND_ADDRESS", defaultBindAddress),
			Port:           getEnv("SERVER_PORT", "8000"),
			AllowOrigins:   getEnv("ALLOW_ORIGINS", "http://localhost:8000"),
			TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", "127.0.0.1,::1")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./storage/odmhub.db"),
		},
		Media: MediaConfig{
			Root: getEnv("MEDIA_ROOT", "./storage/media"),
		},
		Auth: AuthConfig{
			JWTSecret:     strings.TrimSpace(getEnv("JWT_SECRET", defaultSecret)),
			TokenDuration: getEnvIntAny(24, "TOKEN_DURATION_HOURS"),
		},
		UI: UIConfig{
			TaskOptionsDocsLink:  getEnv("TASK_OPTIONS_DOCS_LINK", "https://docs.opendronemap.org/arguments/"),
			GCPDocsLink:          getEnv("GCP_DOCS_LINK", "https://docs.opendronemap.org/gcp/"),
			ResetPasswordLink:    getEnv("RESET_PASSWORD_LINK", ""),
			ExternalAuthEndpoint: strings.TrimSpace(getEnv("EXTERNAL_AUTH_ENDPOINT", "")),
			SingleUserMode:       getEnvBool("SINGLE_USER_MODE", false),
			DesktopMode:          getEnvBool("DESKTOP_MODE", false),
			DevMode:              getEnvBool("DEV", !isProd),
			GracePeriodHours:     getEnvIntAny(8, "QUOTA_EXCEEDED_GRACE_PERIOD_HOURS", "QUOTA_EXCEEDED_GRACE_PERIOD"),
			DefaultLanguage:      getEnv("LANGUAGE_CODE", "en"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvBool("METRICS_ENABLED", !isProd),
			MetricsToken:   strings.TrimSpace(getEnv("METRICS_TOKEN", "")),
		},
	}
}

// Validate checks that the configuration is valid for the current environment.
// In production, it enforces stricter requirements.
func (c *Config) Validate() error {
	if c.IsProduction {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET environment variable is required in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.UI.DevMode {
			return errors.New("DEV must be disabled in production")
		}
		if c.Observability.MetricsEnabled && c.Observability.MetricsToken == "" {
			return errors.New("METRICS_TOKEN is required in production when METRICS_ENABLED=true")
		}
	}

	if strings.TrimSpace(c.Server.BindAddress) == "" {
		return errors.New("SERVER_BIND_ADDRESS must not be empty")
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("SERVER_PORT must be a valid port number (1-65535)")
	}

	if c.UI.GracePeriodHours < 0 {
		return errors.New("QUOTA_EXCEEDED_GRACE_PERIOD_HOURS must not be negative")
	}
	if c.Auth.TokenDuration < 1 {
		return errors.New("TOKEN_DURATION_HOURS must be positive")
	}

	if c.UI.ExternalAuthEndpoint != "" {
		u, err := url.Parse(c.UI.ExternalAuthEndpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("EXTERNAL_AUTH_ENDPOINT must be an absolute URL")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntAny(defaultValue int, keys ...string) int {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			if intVal, err := strconv.Atoi(value); err == nil {
				return intVal
			}
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func splitCSV(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func loadDotEnvIfPresent() {
	// #nosec G304 -- fixed application dotenv location.
	content, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, rawLine := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
