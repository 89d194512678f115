package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "")
	t.Setenv("GENERATOR", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("BACKOFF_BASE_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HistoryBackend != BackendFile {
		t.Fatalf("HistoryBackend = %q, want %q", cfg.HistoryBackend, BackendFile)
	}
	if cfg.HistoryKey != "generationHistory" {
		t.Fatalf("HistoryKey = %q, want generationHistory", cfg.HistoryKey)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10*1024*1024)
	}
	if cfg.MaxImageDimension != 1920 {
		t.Fatalf("MaxImageDimension = %d, want 1920", cfg.MaxImageDimension)
	}
	if cfg.MaxImagePixels != 50_000_000 {
		t.Fatalf("MaxImagePixels = %d, want 50000000", cfg.MaxImagePixels)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != 500*time.Millisecond {
		t.Fatalf("BackoffBase = %v, want 500ms", cfg.BackoffBase)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown history backend")
	}
}

func TestLoadRequiresSupabaseCredentials(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when SUPABASE_SERVICE_KEY is missing")
	}
}

func TestLoadRequiresGeminiKey(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "memory")
	t.Setenv("GENERATOR", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when GEMINI_API_KEY is missing")
	}
}

func TestLoadParsesRedisSettings(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "REDIS")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_USE_TLS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HistoryBackend != BackendRedis {
		t.Fatalf("HistoryBackend = %q, want %q", cfg.HistoryBackend, BackendRedis)
	}
	if got := cfg.RedisAddr(); got != "cache.internal:6380" {
		t.Fatalf("RedisAddr = %q, want cache.internal:6380", got)
	}
	if !cfg.RedisUseTLS {
		t.Fatalf("RedisUseTLS = false, want true")
	}
}

func TestLoadSessionSettings(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "memory")
	t.Setenv("SESSION_IDLE_MINUTES", "15")
	t.Setenv("SESSION_SWEEP_MINUTES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SessionIdleTimeout != 15*time.Minute {
		t.Fatalf("SessionIdleTimeout = %v, want 15m", cfg.SessionIdleTimeout)
	}
	if cfg.SessionSweepInterval != 5*time.Minute {
		t.Fatalf("SessionSweepInterval = %v, want 5m", cfg.SessionSweepInterval)
	}
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	cases := map[string][2]string{
		"zero sweep":           {"SESSION_SWEEP_MINUTES", "0"},
		"request below upload": {"MAX_REQUEST_MB", "1"},
		"zero attempts":        {"MAX_ATTEMPTS", "0"},
		"jpeg quality":         {"JPEG_QUALITY", "101"},
		"zero pixel budget":    {"MAX_IMAGE_PIXELS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HISTORY_BACKEND", "memory")
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
