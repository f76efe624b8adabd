package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	LogLevel  string
	LogFormat string

	BatchMaxConcurrency int

	DashboardCacheTTL        time.Duration
	DashboardRefreshSchedule string
	PendingReportSchedule    string
	CacheCleanupSchedule     string

	IPOImportBaseURL   string
	IPOImportRateLimit time.Duration
	ASBAPDFEnabled     bool

	AdminUsername string
	AdminPassword string

	// TuningFile optionally points at a JSON UnifiedConfiguration whose
	// values replace the built-in defaults before the environment is applied.
	TuningFile string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		BatchMaxConcurrency: getEnvInt("BATCH_MAX_CONCURRENCY", 5),

		DashboardCacheTTL:        time.Duration(getEnvInt("DASHBOARD_CACHE_TTL_MINUTES", 5)) * time.Minute,
		DashboardRefreshSchedule: getEnv("DASHBOARD_REFRESH_SCHEDULE", "@every 5m"),
		PendingReportSchedule:    getEnv("PENDING_BID_REPORT_SCHEDULE", "@hourly"),
		CacheCleanupSchedule:     getEnv("CACHE_CLEANUP_SCHEDULE", "@every 15m"),

		IPOImportBaseURL:   getEnv("IPO_IMPORT_BASE_URL", ""),
		IPOImportRateLimit: time.Duration(getEnvInt("IPO_IMPORT_RATE_LIMIT_MS", 2000)) * time.Millisecond,
		ASBAPDFEnabled:     getEnvBool("ASBA_PDF_ENABLED", false),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		TuningFile: getEnv("TUNING_FILE", ""),
	}
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return shared.NewServiceError(shared.ErrorCategoryConfiguration, "MISSING_SETTINGS",
			"missing required settings: "+strings.Join(missing, ", "), "Config", "Validate", false, nil)
	}
	return nil
}

// Unified overlays the environment onto the default tunables
func (c *Config) Unified() (*shared.UnifiedConfiguration, error) {
	unified := shared.NewDefaultUnifiedConfiguration()
	if c.TuningFile != "" {
		raw, err := os.ReadFile(c.TuningFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read tuning file: %w", err)
		}
		if err := unified.LoadFromJSON(raw); err != nil {
			return nil, err
		}
	}

	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat
	unified.Batch.MaxConcurrency = c.BatchMaxConcurrency
	unified.Cache.DefaultTTL = c.DashboardCacheTTL
	if c.IPOImportBaseURL != "" {
		unified.Importer.BaseURL = c.IPOImportBaseURL
	}
	unified.Importer.RequestRateLimit = c.IPOImportRateLimit

	unified.ValidateAndApplyDefaults()
	return unified, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %t", key, value, fallback)
		return fallback
	}
	return b
}
