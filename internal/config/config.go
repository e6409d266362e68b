package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"regtrack/internal/apperr"
)

type Config struct {
	DBDSN             string
	DBConnectAttempts int
	ServerPort        string

	JWTSecret       string
	JWTIssuer       string
	OnboardingToken string

	LogLevel  string
	LogFormat string

	NATSURL           string
	NATSSubjectPrefix string
	RelayInterval     time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

// RelayEnabled reports whether a message bus is configured.
func (c *Config) RelayEnabled() bool {
	return c.NATSURL != ""
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:             getenv("DB_DSN"),
		ServerPort:        getenv("SERVER_PORT"),
		JWTSecret:         getenv("JWT_SECRET"),
		JWTIssuer:         getenv("JWT_ISSUER"),
		OnboardingToken:   getenv("ONBOARDING_TOKEN"),
		LogLevel:          getenv("LOG_LEVEL"),
		LogFormat:         getenv("LOG_FORMAT"),
		NATSURL:           getenv("NATS_URL"),
		NATSSubjectPrefix: getenv("NATS_SUBJECT_PREFIX"),
	}

	if cfg.DBDSN == "" {
		return nil, apperr.New(apperr.CodeValidation, "DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, apperr.New(apperr.CodeValidation, "JWT_SECRET is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.NATSSubjectPrefix == "" {
		cfg.NATSSubjectPrefix = "regtrack"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, apperr.Newf(apperr.CodeValidation, "LOG_LEVEL %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, apperr.Newf(apperr.CodeValidation, "LOG_FORMAT %q is not json or console", cfg.LogFormat)
	}

	var err error
	if cfg.RelayInterval, err = duration(getenv, "RELAY_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = float(getenv, "RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = integer(getenv, "RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.DBConnectAttempts, err = integer(getenv, "DB_CONNECT_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, invalid(key, raw, err)
	}
	return d, nil
}

func float(getenv func(string) string, key string, def float64) (float64, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return 0, invalid(key, raw, err)
	}
	return f, nil
}

func integer(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, invalid(key, raw, err)
	}
	return n, nil
}

func invalid(key, raw string, err error) error {
	if err == nil {
		err = errors.New("must be positive")
	}
	return apperr.Wrap(err, apperr.CodeValidation, fmt.Sprintf("%s=%q", key, raw))
}
