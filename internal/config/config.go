package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Logging  LoggingConfig
	Scan     ScanConfig
	Detector DetectorConfig
	Notify   NotifyConfig
	Provider ProviderConfig
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string `validate:"oneof=sqlite postgres"`
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error fatal"`
	Format string `validate:"oneof=json console"`
}

// ScanConfig contains drift scan configuration
type ScanConfig struct {
	// Cron schedule for periodic environment scans
	Schedule string
	// Parallelism of diff computation within one scan
	Workers int `validate:"min=1"`
	// How long generated recommendations stay active before expiry
	RecommendationTTL time.Duration
	// Maintenance window (local hours) used by the cause classifier
	MaintenanceWindowStart int `validate:"min=0,max=23"`
	MaintenanceWindowEnd   int `validate:"min=0,max=23"`
	// Service accounts treated as automation actors by the classifier
	AutomationActors []string
}

// DetectorConfig contains diff engine configuration
type DetectorConfig struct {
	// Property path substrings that mark a change security critical
	SensitivePatterns []string
}

// NotifyConfig contains notification configuration
type NotifyConfig struct {
	// Severity score at or above which a notification is emitted
	CriticalThreshold float64 `validate:"min=0,max=1"`
	WebhookURL        string
}

// ProviderConfig contains cloud provider and integration configuration
type ProviderConfig struct {
	AWSRegion    string
	GCPProjectID string
	OpenAIAPIKey string
	// Cloud API requests per second per collector
	RateLimit float64
}

// DefaultSensitivePatterns is the built-in sensitive path set, overridable
// through DETECTOR_SENSITIVE_PATTERNS.
var DefaultSensitivePatterns = []string{
	"security_group", "iam", "public", "encryption", "password",
	"acl", "policy", "ingress", "egress", "secret", "key",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "driftguard"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./driftguard.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Scan: ScanConfig{
			Schedule:               getEnv("SCAN_SCHEDULE", "@every 15m"),
			Workers:                getEnvAsInt("SCAN_WORKERS", 8),
			RecommendationTTL:      getEnvAsDuration("RECOMMENDATION_TTL", 30*24*time.Hour),
			MaintenanceWindowStart: getEnvAsInt("MAINTENANCE_WINDOW_START", 22),
			MaintenanceWindowEnd:   getEnvAsInt("MAINTENANCE_WINDOW_END", 6),
			AutomationActors:       getEnvAsList("AUTOMATION_ACTORS", []string{"terraform-ci", "autoscaler"}),
		},
		Detector: DetectorConfig{
			SensitivePatterns: getEnvAsList("DETECTOR_SENSITIVE_PATTERNS", DefaultSensitivePatterns),
		},
		Notify: NotifyConfig{
			CriticalThreshold: getEnvAsFloat("NOTIFY_CRITICAL_THRESHOLD", 0.8),
			WebhookURL:        getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Provider: ProviderConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			GCPProjectID: getEnv("GCP_PROJECT_ID", ""),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			RateLimit:    getEnvAsFloat("PROVIDER_RATE_LIMIT", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Notify.CriticalThreshold < 0 || c.Notify.CriticalThreshold > 1 {
		return fmt.Errorf("notify critical threshold must be in [0,1], got %f", c.Notify.CriticalThreshold)
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan workers must be at least 1, got %d", c.Scan.Workers)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
