package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History backends understood by kvstore.Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Generators understood by the orchestrator wiring in main.
const (
	GeneratorMock   = "mock"
	GeneratorGemini = "gemini"
)

// Config - every environment-driven setting of the server
type Config struct {
	AppEnv string
	Port   string

	// History persistence
	HistoryBackend string
	HistoryKey     string
	DataDir        string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseKVTable    string

	// Generation backend
	Generator        string
	GeminiAPIKey     string
	GeminiModel      string
	MockOverloadRate float64

	// Ingestion
	MaxUploadBytes    int64
	MaxRequestBytes   int64
	MaxImageDimension int
	MaxImagePixels    int64
	JPEGQuality       int
	PreviewQuality    float32

	// Retry policy
	MaxAttempts int
	BackoffBase time.Duration

	// Session housekeeping
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
}

// Load - reads .env (when present) and the process environment
func Load() (*Config, error) {
	// .env is optional; the process environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
		HistoryKey:     getEnv("HISTORY_KEY", "generationHistory"),
		DataDir:        getEnv("DATA_DIR", "./data"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseKVTable:    getEnv("SUPABASE_KV_TABLE", "kv_store"),

		Generator:        strings.ToLower(getEnv("GENERATOR", GeneratorMock)),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		MockOverloadRate: getEnvFloat("MOCK_OVERLOAD_RATE", 0.2),

		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 10)) * 1024 * 1024,
		MaxRequestBytes:   int64(getEnvInt("MAX_REQUEST_MB", 50)) * 1024 * 1024,
		MaxImageDimension: getEnvInt("MAX_IMAGE_DIMENSION", 1920),
		MaxImagePixels:    int64(getEnvInt("MAX_IMAGE_PIXELS", 50_000_000)),
		JPEGQuality:       getEnvInt("JPEG_QUALITY", 90),
		PreviewQuality:    float32(getEnvFloat("PREVIEW_QUALITY", 80)),

		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 3),
		BackoffBase: time.Duration(getEnvInt("BACKOFF_BASE_MS", 500)) * time.Millisecond,

		SessionIdleTimeout:   time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 120)) * time.Minute,
		SessionSweepInterval: time.Duration(getEnvInt("SESSION_SWEEP_MINUTES", 30)) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - required combinations of settings
func (c *Config) validate() error {
	switch c.HistoryBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis history backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase history backend")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required for the supabase history backend")
		}
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}

	switch c.Generator {
	case GeneratorMock:
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini generator")
		}
	default:
		return fmt.Errorf("unknown GENERATOR %q", c.Generator)
	}

	if strings.TrimSpace(c.HistoryKey) == "" {
		return fmt.Errorf("HISTORY_KEY must not be empty")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	if c.MaxImageDimension < 1 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be positive")
	}
	if c.MaxImagePixels < 1 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1..100")
	}
	if c.MaxRequestBytes < c.MaxUploadBytes {
		return fmt.Errorf("MAX_REQUEST_MB must not be smaller than MAX_UPLOAD_MB")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_MINUTES must be positive")
	}
	return nil
}

// RedisAddr - host:port for go-redis
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// IsDevelopment reports whether the server runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
