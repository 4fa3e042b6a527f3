package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	CORSAllowedOrigins []string

	// Provider chain.
	ProviderOrder       []string
	ProviderTimeout     time.Duration
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	HuggingFaceToken    string
	HuggingFaceBaseURL  string
	HuggingFaceModel    string
	PollinationsBaseURL string

	// Asset publishing.
	StorageBackend string // "filesystem" or "s3"
	StoragePath    string
	StorageBaseURL string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool
	S3PublicURL    string

	// Rate limiting. RedisURL selects the shared counter backend; empty
	// means the in-process window.
	RedisURL        string
	RateLimit       int
	RateLimitWindow time.Duration

	// Async processing.
	DispatchWorkers int
	DispatchQueue   int
	WorkerPoll      time.Duration
	WorkerClaimAge  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		ProviderOrder:       splitList(getEnv("PROVIDER_ORDER", "openai,huggingface,pollinations")),
		ProviderTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 90)),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:         getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		HuggingFaceToken:    os.Getenv("HUGGINGFACE_API_TOKEN"),
		HuggingFaceBaseURL:  getEnv("HUGGINGFACE_BASE_URL", "https://router.huggingface.co/hf-inference/models"),
		HuggingFaceModel:    getEnv("HUGGINGFACE_MODEL", "black-forest-labs/FLUX.1-schnell"),
		PollinationsBaseURL: getEnv("POLLINATIONS_BASE_URL", "https://image.pollinations.ai"),

		StorageBackend: getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       getEnv("S3_BUCKET", "thumbnails"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", false),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		RedisURL:        os.Getenv("REDIS_URL"),
		RateLimit:       getEnvInt("RATE_LIMIT_PER_WINDOW", 10),
		RateLimitWindow: time.Second * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 3600)),

		DispatchWorkers: getEnvInt("DISPATCH_WORKERS", 4),
		DispatchQueue:   getEnvInt("DISPATCH_QUEUE_SIZE", 64),
		WorkerPoll:      time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 2)),
		WorkerClaimAge:  time.Second * time.Duration(getEnvInt("WORKER_CLAIM_AGE_SECONDS", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StorageBackend != "filesystem" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be filesystem or s3, got %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
