// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Engine toggle. When true the engine is bypassed entirely: every
	// signup is allowed with default credits.
	Disabled bool

	// Captcha provider
	CaptchaSecretKey  string
	CaptchaVerifyURL  string
	CaptchaFailClosed bool // on provider outage: true = treat as fail, false = unknown

	// IP intelligence provider
	IPIntelToken string
	IPIntelURL   string

	// Validator timeout budget for a single attempt.
	ValidatorTimeout time.Duration

	// Ops alerting
	AlertWebhookURL string
	AdminSecret     string

	// Decision thresholds (inclusive boundaries).
	ReviewThreshold int
	BlockThreshold  int

	// Velocity limits
	MaxAttemptsPerIP          int
	MaxAccountsPerIP          int
	MaxAttemptsPerFingerprint int

	// Credit grants
	ReviewCredits   int // granted when decision is review
	DegradedCredits int // granted in degraded (store-down) mode

	// API rate limiting
	RateLimitRPM int
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultCaptchaVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	DefaultIPIntelURL       = "https://ipintel.internal.meterly.dev/v1/lookup"
	DefaultValidatorTimeout = 3 * time.Second
	DefaultReviewThreshold  = 40
	DefaultBlockThreshold   = 70
	DefaultReviewCredits    = 50
	DefaultDegradedCredits  = 50
	DefaultRateLimit        = 120
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", DefaultPort),
		Env:                       getEnv("ENV", DefaultEnv),
		LogLevel:                  getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:               os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		Disabled:                  getEnvBool("ANTIFRAUD_DISABLED", false),
		CaptchaSecretKey:          os.Getenv("CAPTCHA_SECRET_KEY"),
		CaptchaVerifyURL:          getEnv("CAPTCHA_VERIFY_URL", DefaultCaptchaVerifyURL),
		CaptchaFailClosed:         getEnvBool("CAPTCHA_FAIL_CLOSED", false),
		IPIntelToken:              os.Getenv("IPINTEL_API_TOKEN"),
		IPIntelURL:                getEnv("IPINTEL_URL", DefaultIPIntelURL),
		ValidatorTimeout:          getEnvDuration("VALIDATOR_TIMEOUT", DefaultValidatorTimeout),
		AlertWebhookURL:           os.Getenv("ALERT_WEBHOOK_URL"),
		AdminSecret:               os.Getenv("ADMIN_SECRET"),
		ReviewThreshold:           getEnvInt("REVIEW_THRESHOLD", DefaultReviewThreshold),
		BlockThreshold:            getEnvInt("BLOCK_THRESHOLD", DefaultBlockThreshold),
		MaxAttemptsPerIP:          getEnvInt("MAX_ATTEMPTS_PER_IP", 10),
		MaxAccountsPerIP:          getEnvInt("MAX_ACCOUNTS_PER_IP", 3),
		MaxAttemptsPerFingerprint: getEnvInt("MAX_ATTEMPTS_PER_FINGERPRINT", 5),
		ReviewCredits:             getEnvInt("REVIEW_CREDITS", DefaultReviewCredits),
		DegradedCredits:           getEnvInt("DEGRADED_CREDITS", DefaultDegradedCredits),
		RateLimitRPM:              getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
func (c *Config) Validate() error {
	if !c.Disabled && c.CaptchaSecretKey == "" {
		return fmt.Errorf("CAPTCHA_SECRET_KEY is required unless ANTIFRAUD_DISABLED is set")
	}

	if c.ReviewThreshold < 0 || c.ReviewThreshold > 100 {
		return fmt.Errorf("REVIEW_THRESHOLD must be in [0,100], got %d", c.ReviewThreshold)
	}
	if c.BlockThreshold < 0 || c.BlockThreshold > 100 {
		return fmt.Errorf("BLOCK_THRESHOLD must be in [0,100], got %d", c.BlockThreshold)
	}
	if c.ReviewThreshold >= c.BlockThreshold {
		return fmt.Errorf("REVIEW_THRESHOLD (%d) must be below BLOCK_THRESHOLD (%d)", c.ReviewThreshold, c.BlockThreshold)
	}

	if c.ValidatorTimeout <= 0 {
		return fmt.Errorf("VALIDATOR_TIMEOUT must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
