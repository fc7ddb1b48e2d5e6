package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey      string
	RequireAuth bool

	LogLevel string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Chunking and section defaults
	DefaultChunkSize    int
	DefaultChunkOverlap int
	SectionPrefixLen    int
	PagePlaceholder     string
	SplitOnSection      bool
	HeadingRulesFile    string

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// OCR
	OCREnabled     bool
	OCREngine      string
	OCRLanguages   string
	OCRDPI         int
	OCRPSM         int
	OCRConcurrency int
	OCRTimeout     time.Duration

	// DOCX
	DOCXPageChars int

	// Result store
	StoreBackend  string
	BoltPath      string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	ResultTTL     time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8000"),

		APIKey:      os.Getenv("SECTIONGEST_API_KEY"),
		RequireAuth: envBool("REQUIRE_AUTH", false),

		LogLevel: envOr("LOG_LEVEL", "info"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 600),
		DefaultChunkOverlap: envInt("DEFAULT_CHUNK_OVERLAP", 100),
		SectionPrefixLen:    envInt("SECTION_PREFIX_LEN", 400),
		PagePlaceholder:     envOr("PAGE_PLACEHOLDER", "Page %d"),
		SplitOnSection:      envBool("SPLIT_ON_SECTION", false),
		HeadingRulesFile:    os.Getenv("HEADING_RULES_FILE"),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		OCREnabled:     envBool("OCR_ENABLED", true),
		OCREngine:      strings.ToLower(envOr("OCR_ENGINE", "tesseract")),
		OCRLanguages:   envOr("OCR_LANGUAGES", "ara+eng+fra"),
		OCRDPI:         envInt("OCR_DPI", 300),
		OCRPSM:         envInt("OCR_PSM", 6),
		OCRConcurrency: envInt("OCR_CONCURRENCY", 4),
		OCRTimeout:     envDuration("OCR_TIMEOUT", 5*time.Minute),

		DOCXPageChars: envInt("DOCX_PAGE_CHARS", 600),

		StoreBackend:  strings.ToLower(envOr("STORE_BACKEND", "bolt")),
		BoltPath:      envOr("BOLT_PATH", "sectiongest.db"),
		RedisAddr:     envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:       envInt("REDIS_DB", 0),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ResultTTL:     envDuration("RESULT_TTL", 0),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SectionPrefixLen <= 0 {
		cfg.SectionPrefixLen = 400
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.OCRConcurrency <= 0 {
		cfg.OCRConcurrency = 4
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 5 * time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	if c.RequireAuth && c.APIKey == "" {
		return fmt.Errorf("SECTIONGEST_API_KEY is required when REQUIRE_AUTH is set")
	}
	if c.DefaultChunkSize <= 0 {
		return fmt.Errorf("DEFAULT_CHUNK_SIZE must be positive, got %d", c.DefaultChunkSize)
	}
	if c.DefaultChunkOverlap < 0 || c.DefaultChunkOverlap >= c.DefaultChunkSize {
		return fmt.Errorf("DEFAULT_CHUNK_OVERLAP must be in [0, %d), got %d", c.DefaultChunkSize, c.DefaultChunkOverlap)
	}
	switch c.StoreBackend {
	case "bolt":
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt store")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.OCREnabled && c.OCREngine != "tesseract" && c.OCREngine != "ocrmypdf" {
		return fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine)
	}
	if n := strings.Count(c.PagePlaceholder, "%"); n > 1 || (n == 1 && !strings.Contains(c.PagePlaceholder, "%d")) {
		return fmt.Errorf("PAGE_PLACEHOLDER must contain a single %%d or no verb, got %q", c.PagePlaceholder)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
