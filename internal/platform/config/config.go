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
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Addr                      string
	Environment               string
	LogLevel                  string
	StoreDriver               string
	DatabaseURL               string
	SQLitePath                string
	MigrationsDir             string
	RunMigrations             bool
	SeedFile                  string
	JWTSecret                 string
	MaxBodyBytes              int64
	RateLimitPerMinute        int
	EmailFrom                 string
	EmailEnabled              bool
	SMTPHost                  string
	SMTPPort                  int
	SMTPUser                  string
	SMTPPassword              string
	SMTPUseTLS                bool
	LeaveInitInterval         time.Duration
	LeaveExpiryNoticeInterval time.Duration
	LeaveExpiryNoticeDays     int
	RetentionInterval         time.Duration
	NotificationRetention     time.Duration
	MetricsEnabled            bool
	TracingEnabled            bool
	TracingOutput             string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment variables
// win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                      getEnv("APP_ADDR", ":8080"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		StoreDriver:               strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		SQLitePath:                getEnv("SQLITE_PATH", "intranet.db"),
		MigrationsDir:             getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:             getEnvBool("RUN_MIGRATIONS", true),
		SeedFile:                  getEnv("SEED_FILE", ""),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		MaxBodyBytes:              int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:        getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		EmailFrom:                 getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:              getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  getEnvInt("SMTP_PORT", 587),
		SMTPUser:                  getEnv("SMTP_USER", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:                getEnvBool("SMTP_USE_TLS", true),
		LeaveInitInterval:         getEnvDuration("LEAVE_INIT_INTERVAL", 24*time.Hour),
		LeaveExpiryNoticeInterval: getEnvDuration("LEAVE_EXPIRY_NOTICE_INTERVAL", 24*time.Hour),
		LeaveExpiryNoticeDays:     getEnvInt("LEAVE_EXPIRY_NOTICE_DAYS", 30),
		RetentionInterval:         getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		NotificationRetention:     time.Duration(getEnvInt("NOTIFICATION_RETENTION_DAYS", 180)) * 24 * time.Hour,
		MetricsEnabled:            getEnvBool("METRICS_ENABLED", true),
		TracingEnabled:            getEnvBool("TRACING_ENABLED", false),
		TracingOutput:             getEnv("TRACING_OUTPUT", "stdout"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
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

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.LeaveExpiryNoticeDays <= 0 {
		return fmt.Errorf("LEAVE_EXPIRY_NOTICE_DAYS must be positive")
	}
	return nil
}
