package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers understood by the storage factory.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Notifier backends for booking notifications.
const (
	NotifierLog  = "log"
	NotifierAMQP = "amqp"
	NotifierSMTP = "smtp"
)

// Config captures environment driven configuration values for the parkshare service.
type Config struct {
	HTTPPort  int
	LogLevel  string
	LogFormat string

	DatabaseDriver string
	SQLiteDSN      string
	PostgresURL    string

	SessionTTL           time.Duration
	SessionPruneInterval time.Duration

	RedisURL        string
	ListingCacheTTL time.Duration

	Notifier     string
	AMQPURL      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load reads an optional .env file from the working directory and then parses
// configuration values from the process environment.
func Load() (Config, error) {
	return LoadFrom()
}

// LoadFrom behaves like Load but reads the given env files instead of .env.
// Variables already present in the environment win over file values.
func LoadFrom(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := Config{
		HTTPPort:             8080,
		LogLevel:             "info",
		LogFormat:            "json",
		DatabaseDriver:       DriverSQLite,
		SQLiteDSN:            "file:parkshare.db",
		SessionTTL:           24 * time.Hour,
		SessionPruneInterval: time.Hour,
		ListingCacheTTL:      time.Minute,
		Notifier:             NotifierLog,
		SMTPPort:             587,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if portValue := env("PARKSHARE_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PARKSHARE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if level := env("PARKSHARE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if format := env("PARKSHARE_LOG_FORMAT"); format != "" {
		cfg.LogFormat = strings.ToLower(format)
	}

	if driver := strings.ToLower(env("PARKSHARE_DATABASE_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres:
			cfg.DatabaseDriver = driver
		default:
			invalid = append(invalid, "PARKSHARE_DATABASE_DRIVER")
		}
	}

	if dsn := env("PARKSHARE_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresURL = env("PARKSHARE_POSTGRES_URL")
	if cfg.DatabaseDriver == DriverPostgres && cfg.PostgresURL == "" {
		missing = append(missing, "PARKSHARE_POSTGRES_URL")
	}

	if ttl, ok := parseDuration("PARKSHARE_SESSION_TTL", &invalid); ok {
		cfg.SessionTTL = ttl
	}
	if interval, ok := parseDuration("PARKSHARE_SESSION_PRUNE_INTERVAL", &invalid); ok {
		cfg.SessionPruneInterval = interval
	}

	cfg.RedisURL = env("PARKSHARE_REDIS_URL")
	if ttl, ok := parseDuration("PARKSHARE_LISTING_CACHE_TTL", &invalid); ok {
		cfg.ListingCacheTTL = ttl
	}

	if notifier := strings.ToLower(env("PARKSHARE_NOTIFIER")); notifier != "" {
		switch notifier {
		case NotifierLog, NotifierAMQP, NotifierSMTP:
			cfg.Notifier = notifier
		default:
			invalid = append(invalid, "PARKSHARE_NOTIFIER")
		}
	}

	cfg.AMQPURL = env("PARKSHARE_AMQP_URL")
	if cfg.Notifier == NotifierAMQP && cfg.AMQPURL == "" {
		missing = append(missing, "PARKSHARE_AMQP_URL")
	}

	cfg.SMTPHost = env("PARKSHARE_SMTP_HOST")
	cfg.SMTPUsername = env("PARKSHARE_SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("PARKSHARE_SMTP_PASSWORD")
	cfg.SMTPFrom = env("PARKSHARE_SMTP_FROM")
	if portValue := env("PARKSHARE_SMTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PARKSHARE_SMTP_PORT")
		} else {
			cfg.SMTPPort = port
		}
	}
	if cfg.Notifier == NotifierSMTP {
		if cfg.SMTPHost == "" {
			missing = append(missing, "PARKSHARE_SMTP_HOST")
		}
		if cfg.SMTPFrom == "" {
			missing = append(missing, "PARKSHARE_SMTP_FROM")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseDuration(key string, invalid *[]string) (time.Duration, bool) {
	value := env(key)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, key)
		return 0, false
	}
	return d, true
}
