package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Skin Analysis Provider Configuration
	SkinProvider       string // "httpapi" or "mock"
	SkinAPIBaseURL     string
	SkinAPIKey         string
	SkinMaxRetries     int
	SkinRetryBaseDelay time.Duration
	SkinRequestTimeout time.Duration

	// Lifecycle timing
	PollInterval     time.Duration
	UploadDeadline   time.Duration
	AnalysisDeadline time.Duration
	SettleDelay      time.Duration
	CleanupDelay     time.Duration

	// Image quality thresholds (0-100)
	QualityMinThreshold  float64
	QualityWarnThreshold float64

	// Per-user request rate limit. Zero disables limiting.
	RateLimitPerMinute int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Provider defaults
		SkinProvider:       getEnv("SKIN_PROVIDER", "mock"),
		SkinAPIBaseURL:     getEnv("SKIN_API_BASE_URL", ""),
		SkinAPIKey:         getEnv("SKIN_API_KEY", ""),
		SkinMaxRetries:     getEnvInt("SKIN_MAX_RETRIES", 3),
		SkinRetryBaseDelay: getEnvDuration("SKIN_RETRY_BASE_DELAY", 1*time.Second),
		SkinRequestTimeout: getEnvDuration("SKIN_REQUEST_TIMEOUT", 30*time.Second),

		// Lifecycle timing defaults
		PollInterval:     getEnvDuration("POLL_INTERVAL", 3*time.Second),
		UploadDeadline:   getEnvDuration("UPLOAD_DEADLINE", 15*time.Second),
		AnalysisDeadline: getEnvDuration("ANALYSIS_DEADLINE", 40*time.Second),
		SettleDelay:      getEnvDuration("SETTLE_DELAY", 1*time.Second),
		CleanupDelay:     getEnvDuration("CLEANUP_DELAY", 800*time.Millisecond),

		// Quality thresholds
		QualityMinThreshold:  getEnvFloat("QUALITY_MIN_THRESHOLD", 10),
		QualityWarnThreshold: getEnvFloat("QUALITY_WARN_THRESHOLD", 50),

		// Rate limiting
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate provider configuration
	if cfg.SkinProvider == "httpapi" {
		if cfg.SkinAPIKey == "" {
			return nil, fmt.Errorf("SKIN_API_KEY is required when SKIN_PROVIDER is 'httpapi'")
		}
	} else if cfg.SkinProvider != "mock" {
		return nil, fmt.Errorf("SKIN_PROVIDER must be either 'httpapi' or 'mock', got: %s", cfg.SkinProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
