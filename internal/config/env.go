package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogFile     string

	AIAPIKey       string
	GenModel       string
	SystemPrompt   string
	LLMTimeout     time.Duration
	LLMTemperature float64 // negative means model default

	MaxPages    int
	MaxUploadMB int

	SessionTTL time.Duration
	SessionMax int

	CorsAllowedOrigins []string

	AuditWebhookURL string
	AuditTimeout    time.Duration
	AuditQueueSize  int
	DatabaseURL     string
	SslCertPath     string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	JWTSecret string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8000"),
		Environment:        getEnv("APP_ENV", "development"),
		LogFile:            getEnv("LOG_FILE", "logs/docchat.log"),
		AIAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GenModel:           getEnv("GEN_MODEL", "gemini-2.0-flash"),
		SystemPrompt:       getEnv("SYSTEM_PROMPT", ""),
		LLMTimeout:         getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMTemperature:     getEnvFloat("LLM_TEMPERATURE", -1),
		MaxPages:           getEnvInt("MAX_PAGES", 50),
		MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 52),
		SessionTTL:         getEnvDuration("SESSION_TTL", time.Hour),
		SessionMax:         getEnvInt("SESSION_MAX", 1000),
		CorsAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AuditWebhookURL:    getEnv("AUDIT_WEBHOOK_URL", ""),
		AuditTimeout:       getEnvDuration("AUDIT_TIMEOUT", 5*time.Second),
		AuditQueueSize:     getEnvInt("AUDIT_QUEUE_SIZE", 256),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SslCertPath:        getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey:       getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:       getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:          getEnv("AWS_REGION", "us-east-2"),
		BucketName:         getEnv("BUCKET_NAME", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
	}

	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("MAX_PAGES must be positive, got %d", cfg.MaxPages)
	}

	return cfg, nil
}

// IsProduction reports whether logs should be emitted as JSON on the console too.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ArchiveEnabled reports whether uploaded originals are copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not an int, using default %d\n", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not a number, using default %v\n", key, v, def)
		return def
	}
	return f
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	fmt.Fprintf(os.Stderr, "WARN: %s=%q not a duration, using default %s\n", key, v, def)
	return def
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
