package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/smartcrm/internal/featureflags"
)

// Config holds the application configuration. It is built once by Load
// and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	AppName            string
	DatabaseURL        string // empty runs on the in-memory store
	RedisURL           string // empty keeps token revocations in memory
	JWTSecret          string
	TokenTTL           time.Duration
	BcryptCost         int
	OrgCacheTTL        time.Duration
	StatsInterval      time.Duration
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string
	SMTP               SMTPConfig
	AutoClassify       bool
	OTLPEndpoint       string // empty disables trace export
}

// SMTPConfig configures outbound email. An empty Host logs mail instead of
// sending it, which is only allowed in development.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

const devJWTSecret = "dev-secret-change-me"

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	bcryptCost, err := strconv.Atoi(getEnv("BCRYPT_COST", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	orgCacheTTL, err := time.ParseDuration(getEnv("ORG_CACHE_TTL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORG_CACHE_TTL: %w", err)
	}

	statsInterval, err := time.ParseDuration(getEnv("STATS_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}

	rateWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		ServerPort:        port,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AppName:           getEnv("APP_NAME", "SmartCRM"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          tokenTTL,
		BcryptCost:        bcryptCost,
		OrgCacheTTL:       orgCacheTTL,
		StatsInterval:     statsInterval,
		RateLimitRequests: rateLimit,
		RateLimitWindow:   rateWindow,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@smartcrm.local"),
		},
		AutoClassify: featureflags.Enabled(featureflags.AutoClassify),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether insecure defaults are acceptable.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	} else if !c.IsDevelopment() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.SMTP.Host == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("SMTP_HOST is required outside development"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	if c.StatsInterval <= 0 {
		errs = append(errs, errors.New("STATS_INTERVAL must be positive"))
	}
	if c.RateLimitRequests < 1 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit must allow at least one request per positive window"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
