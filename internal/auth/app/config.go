package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Issuer claim for minted tokens

	// Signing secrets, one per token domain. All three are required and
	// must differ so tokens cannot cross domains.
	AccessSecret  string
	RefreshSecret string
	PreTFASecret  string

	// MasterKey is the key material sealing TOTP secrets at rest.
	MasterKey string

	AccessTTL  time.Duration // Access token lifetime (default: 30m)
	RefreshTTL time.Duration // Refresh token lifetime (default: 24h)
	PreTFATTL  time.Duration // Pre-TFA token lifetime (default: 2m)

	TOTPTolerance    int // Accepted TOTP steps either side of now (default: 2)
	BackupTokenCount int // Recovery codes per device (default: 5)

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	PepperFile   string // Path to password-hashing pepper file (default: ./pepper)

	RedisAddr    string // Redis address for the mail queue (default: localhost:6379)
	MailQueueKey string // Optional override of the queue list key
	SMTPAddr     string // host:port of the SMTP relay; empty means log-only delivery
	SMTPFrom     string // From address on outbound mail

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "gatehouse"),
		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),
		PreTFASecret:  os.Getenv("AUTH_PRETFA_SECRET"),
		MasterKey:     os.Getenv("AUTH_MASTER_KEY"),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", 30*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 24*time.Hour),
		PreTFATTL:  getEnvDurationOrDefault("AUTH_PRETFA_TTL", 2*time.Minute),

		TOTPTolerance:    getEnvIntOrDefault("AUTH_TOTP_TOLERANCE", 2),
		BackupTokenCount: getEnvIntOrDefault("AUTH_BACKUP_TOKEN_COUNT", 5),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MailQueueKey: os.Getenv("MAIL_QUEUE_KEY"),
		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@gatehouse.local"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate checks the fields that have no safe default.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" || c.PreTFASecret == "" {
		return errors.New("AUTH_ACCESS_SECRET, AUTH_REFRESH_SECRET and AUTH_PRETFA_SECRET are required")
	}
	if c.AccessSecret == c.RefreshSecret || c.AccessSecret == c.PreTFASecret || c.RefreshSecret == c.PreTFASecret {
		return errors.New("token signing secrets must differ per domain")
	}
	if c.MasterKey == "" {
		return errors.New("AUTH_MASTER_KEY is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
