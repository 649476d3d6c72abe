package app

import (
	"os"
	"time"

	"github.com/voxbridge/voxbridge/internal/upstream"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	LogLevel      string
	SentryDSN     string

	// Upstream realtime speech API
	UpstreamURL  string
	OpenAIAPIKey string // platform fallback key for agents without their own

	// Encryption of stored customer credentials
	SecretKey string

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
}

func LoadConfigFromEnv() Config {
	jwtExpiry, err := time.ParseDuration(getenv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		UpstreamURL:  getenv("UPSTREAM_URL", upstream.DefaultURL),
		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),

		SecretKey: os.Getenv("SECRET_KEY"), // Required - no fallback for security
		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security
		JWTExpiry: jwtExpiry,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
