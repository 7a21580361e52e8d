package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port        string
	DatabaseURL string

	// Base URL of the public frontend, used to build notification links.
	FrontendBaseURL string

	// GitHub OAuth application credentials plus a personal access token
	// for metadata calls exceeding anonymous rate limits.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubAccessToken  string
	OAuthCallbackURL   string

	// Session signing secret.
	JWTSecret string

	// Optional bearer token guarding the refresh endpoint. Empty means
	// the endpoint is open.
	SchedulerToken string

	// Outbound mail. Empty SMTPHost disables delivery.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailAddress string
	// Address the "new submission" notifications go to.
	ReviewersEmail string
}

// Load loads the configuration from environment variables. A .env file is
// read first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "postgres://pguser:pgpass@db:5432/showcase?sslmode=disable"),
		FrontendBaseURL:    getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubAccessToken:  getEnv("GITHUB_PERSONAL_ACCESS_TOKEN", ""),
		OAuthCallbackURL:   getEnv("OAUTH_CALLBACK_URL", "http://localhost:8080/auth/github/callback"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		SchedulerToken:     getEnv("SCHEDULER_TOKEN", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		EmailAddress:       getEnv("EMAIL_ADDRESS", ""),
		ReviewersEmail:     getEnv("REVIEWERS_EMAIL", ""),
	}
}

// Validate checks that the settings without usable defaults are present.
func (c *Config) Validate() error {
	if c.GitHubClientID == "" {
		return &ConfigError{Field: "GITHUB_CLIENT_ID", Message: "GitHub OAuth client id is required"}
	}
	if c.GitHubClientSecret == "" {
		return &ConfigError{Field: "GITHUB_CLIENT_SECRET", Message: "GitHub OAuth client secret is required"}
	}
	if c.GitHubAccessToken == "" {
		return &ConfigError{Field: "GITHUB_PERSONAL_ACCESS_TOKEN", Message: "GitHub access token is required"}
	}
	if len(c.JWTSecret) < 16 {
		return &ConfigError{Field: "JWT_SECRET", Message: "session signing secret must be at least 16 characters"}
	}
	if c.SMTPHost != "" && c.EmailAddress == "" {
		return &ConfigError{Field: "EMAIL_ADDRESS", Message: "sender address is required when SMTP is configured"}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
