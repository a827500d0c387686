package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the application reads from the environment.
type Config struct {
	DatabaseURL string
	Port        string
	AppEnv      string
	SentryDSN   string

	DB   PoolConfig
	CORS CORSConfig
	Auth AuthConfig
	Seed SeedConfig

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	// TrustProxy declares that a reverse proxy in front sets X-Forwarded-For.
	// Off by default: a directly reachable server must not honor the header.
	TrustProxy bool
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type CORSConfig struct {
	Origins []string
	Methods []string
	Headers []string
}

// AuthConfig carries token signing settings. Access and refresh secrets are
// independent so a leaked access secret cannot forge refresh tokens.
type AuthConfig struct {
	Algorithm     string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
	RotateRefresh bool
}

// SeedConfig describes the roles and superuser the bootstrap seeder ensures.
// It is built from the environment here so tests can inject alternates.
type SeedConfig struct {
	Roles []RoleSeed
	Admin AdminSeed
}

type RoleSeed struct {
	Name        string
	Description string
}

type AdminSeed struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
	RoleName  string
}

// Load reads configuration from the environment. Required variables missing
// from the environment return an error rather than a default.
func Load() (Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	accessSecret, err := mustEnv("ACCESS_TOKEN_SECRET_KEY")
	if err != nil {
		return Config{}, err
	}
	refreshSecret, err := mustEnv("REFRESH_TOKEN_SECRET_KEY")
	if err != nil {
		return Config{}, err
	}
	superuserEmail, err := mustEnv("SUPERUSER_EMAIL")
	if err != nil {
		return Config{}, err
	}
	superuserPassword, err := mustEnv("SUPERUSER_PASSWORD")
	if err != nil {
		return Config{}, err
	}

	superuserRole := envOrDefault("SUPERUSER_ROLE", "admin")
	firstName, lastName := splitName(envOrDefault("SUPERUSER_NAME", "Super Admin"))
	username := envOrDefault("SUPERUSER_USERNAME", emailLocalPart(superuserEmail))

	cfg := Config{
		DatabaseURL: databaseURL,
		Port:        envOrDefault("PORT", "8080"),
		AppEnv:      envOrDefault("APP_ENV", "development"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		DB: PoolConfig{
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		CORS: CORSConfig{
			Origins: envListOrDefault("BACKEND_CORS_ORIGINS", nil),
			Methods: envListOrDefault("BACKEND_CORS_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			Headers: envListOrDefault("BACKEND_CORS_HEADERS", []string{"Authorization", "Content-Type"}),
		},
		Auth: AuthConfig{
			Algorithm:     envOrDefault("ALGORITHM", "HS256"),
			AccessSecret:  accessSecret,
			RefreshSecret: refreshSecret,
			AccessTTL:     envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTTL:    envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
			Leeway:        envSecondsOrDefault("TOKEN_LEEWAY_SECONDS", 5),
			RotateRefresh: envBoolOrDefault("REFRESH_TOKEN_ROTATION", false),
		},
		Seed: SeedConfig{
			Roles: []RoleSeed{
				{Name: superuserRole, Description: envOrDefault("SUPERUSER_ROLE_DESCRIPTION", "Administrator role")},
				{Name: "user", Description: "Default role for registered users"},
			},
			Admin: AdminSeed{
				FirstName: firstName,
				LastName:  lastName,
				Username:  username,
				Email:     strings.ToLower(strings.TrimSpace(superuserEmail)),
				Password:  superuserPassword,
				RoleName:  superuserRole,
			},
		},
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		TrustProxy:           envBoolOrDefault("TRUSTED_PROXY", false),
	}

	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET_KEY and REFRESH_TOKEN_SECRET_KEY must differ")
	}

	return cfg, nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return strings.ToLower(email[:at])
	}
	return strings.ToLower(email)
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envListOrDefault(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, strings.TrimSuffix(part, "/"))
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}

func envBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}
