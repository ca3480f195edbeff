package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	DefaultGeminiModel = "gemini-2.5-flash-image-preview"
)

// Config - every environment-driven setting, loaded once at startup
type Config struct {
	// Gemini
	GeminiAPIKey   string
	GeminiBackend  string
	GeminiModel    string
	GoogleProject  string
	GoogleLocation string

	// Vertex service account; both empty means Application Default Credentials
	VertexCredentialsJSON string
	VertexCredentialsPath string

	// Server
	Port           string
	MaxUploadSize  int64
	MaxImagePixels int64

	// Session store
	SessionStore string
	SessionTTL   time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Crop / examples
	CropOutputFormat string
	ExamplesFile     string

	// Logging
	LogMode string
	LogFile string

	// EnvFileLoaded reports whether a .env file was found; main logs it once the logger exists.
	EnvFileLoaded bool
}

// LoadConfig - load .env (if present) and the process environment
func LoadConfig() (*Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}
	cfg.EnvFileLoaded = loaded
	return cfg, nil
}

// FromEnv - build and validate a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	useTLS := false
	if tlsStr := env("REDIS_USE_TLS", ""); tlsStr != "" {
		parsed, err := strconv.ParseBool(tlsStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_USE_TLS: %w", err)
		}
		useTLS = parsed
	}

	ttl := 2 * time.Hour
	if ttlStr := env("SESSION_TTL", ""); ttlStr != "" {
		parsed, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		ttl = parsed
	}

	maxUploadMB := 10
	if mbStr := env("MAX_UPLOAD_MB", ""); mbStr != "" {
		parsed, err := strconv.Atoi(mbStr)
		if err != nil {
			return nil, fmt.Errorf("MAX_UPLOAD_MB: %w", err)
		}
		maxUploadMB = parsed
	}

	maxPixels := int64(40_000_000)
	if pxStr := env("MAX_IMAGE_PIXELS", ""); pxStr != "" {
		parsed, err := strconv.ParseInt(pxStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_IMAGE_PIXELS: %w", err)
		}
		maxPixels = parsed
	}

	cfg := &Config{
		GeminiAPIKey:   env("GEMINI_API_KEY", env("API_KEY", "")),
		GeminiBackend:  strings.ToLower(env("GEMINI_BACKEND", BackendGemini)),
		GeminiModel:    env("GEMINI_MODEL", DefaultGeminiModel),
		GoogleProject:  env("GOOGLE_CLOUD_PROJECT", ""),
		GoogleLocation: env("GOOGLE_CLOUD_LOCATION", "us-central1"),

		VertexCredentialsJSON: getenv("VERTEXAI_CREDENTIALS_JSON"),
		VertexCredentialsPath: env("VERTEXAI_CREDENTIALS_PATH", ""),

		Port:           env("PORT", "8080"),
		MaxUploadSize:  int64(maxUploadMB) << 20,
		MaxImagePixels: maxPixels,

		SessionStore: strings.ToLower(env("SESSION_STORE", StoreMemory)),
		SessionTTL:   ttl,

		RedisHost:     env("REDIS_HOST", "localhost"),
		RedisPort:     env("REDIS_PORT", "6379"),
		RedisUsername: env("REDIS_USERNAME", ""),
		RedisPassword: env("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		CropOutputFormat: strings.ToLower(env("CROP_OUTPUT_FORMAT", "png")),
		ExamplesFile:     env("EXAMPLES_FILE", ""),

		LogMode: strings.ToLower(env("LOG_MODE", "development")),
		LogFile: env("LOG_FILE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - required settings and enumerations
func (c *Config) validate() error {
	switch c.GeminiBackend {
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY (or API_KEY) is required")
		}
	case BackendVertex:
		if c.GoogleProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the vertex backend")
		}
	default:
		return fmt.Errorf("GEMINI_BACKEND must be %q or %q, got %q", BackendGemini, BackendVertex, c.GeminiBackend)
	}

	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis session store")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.SessionStore)
	}

	if c.CropOutputFormat != "png" && c.CropOutputFormat != "webp" {
		return fmt.Errorf("CROP_OUTPUT_FORMAT must be png or webp, got %q", c.CropOutputFormat)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}
	return nil
}

// GetRedisAddr - Redis host:port
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
