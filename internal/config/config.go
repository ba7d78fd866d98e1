package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	BackendURL string
	CORSOrigin string
	// Session cookie
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	// Redis Configuration - empty means in-memory session store
	RedisURL string
	// Backend gateway
	BackendTimeout time.Duration
	// AI annotation
	GeminiAPIKey      string
	GeminiModel       string
	AnnotationTimeout time.Duration
	// Page state
	PageTTL time.Duration
}

func Load() Config {
	return Config{
		Addr:         getenv("API_ADDR", ":8790"),
		BackendURL:   getenv("AVISIO_BACKEND_URL", "http://127.0.0.1:8000"),
		CORSOrigin:   getenv("AVISIO_CORS_ORIGIN", "*"),
		CookieName:   getenv("AVISIO_COOKIE_NAME", "access_token"),
		CookieSecure: getenvBool("AVISIO_COOKIE_SECURE", false),
		SessionTTL:   time.Duration(getenvInt("AVISIO_SESSION_TTL_SECONDS", 3600)) * time.Second,
		// Redis - optional, sessions fall back to process memory without it
		RedisURL:          getenv("REDIS_URL", ""),
		BackendTimeout:    time.Duration(getenvInt("AVISIO_BACKEND_TIMEOUT_SECONDS", 10)) * time.Second,
		GeminiAPIKey:      getenv("GEMINI_API_KEY", ""),
		GeminiModel:       getenv("AVISIO_GEMINI_MODEL", "gemini-2.0-flash"),
		AnnotationTimeout: time.Duration(getenvInt("AVISIO_ANNOTATION_TIMEOUT_SECONDS", 20)) * time.Second,
		PageTTL:           time.Duration(getenvInt("AVISIO_PAGE_TTL_SECONDS", 900)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
