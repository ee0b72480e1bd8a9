package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashendes/momo-checkout/internal/pawapay"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// ErrMissingAPIToken is returned when no provider credential is configured
var ErrMissingAPIToken = errors.New("PAWAPAY_API_TOKEN is required")

// Config is the process configuration, read once at startup
type Config struct {
	Port     string
	LogLevel log.Level

	Provider               pawapay.Config
	ProviderMaxConcurrency int

	WebhookSecret    string
	RequireSignature bool

	LimitsFile         string
	MerchantName       string
	AllowedOrigins     []string
	RateLimitPerSecond float64
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables
func FromEnv() (*Config, error) {
	level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	requireSignature, err := strconv.ParseBool(getEnv("PAWAPAY_REQUIRE_SIGNATURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("PAWAPAY_REQUIRE_SIGNATURE: %w", err)
	}
	rate, err := strconv.ParseFloat(getEnv("RATE_LIMIT_PER_SECOND", "25"), 64)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SECOND must be a positive number, got %q", os.Getenv("RATE_LIMIT_PER_SECOND"))
	}
	concurrency, err := strconv.Atoi(getEnv("PROVIDER_MAX_CONCURRENCY", strconv.Itoa(pawapay.DefaultMaxConcurrency)))
	if err != nil || concurrency <= 0 {
		return nil, fmt.Errorf("PROVIDER_MAX_CONCURRENCY must be a positive integer, got %q", os.Getenv("PROVIDER_MAX_CONCURRENCY"))
	}
	timeout, err := time.ParseDuration(getEnv("PAWAPAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("PAWAPAY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: level,
		Provider: pawapay.Config{
			BaseURL:   getEnv("PAWAPAY_BASE_URL", pawapay.DefaultBaseURL),
			APIToken:  os.Getenv("PAWAPAY_API_TOKEN"),
			Timeout:   timeout,
			ReturnURL: getEnv("PAWAPAY_CALLBACK_URL", "http://localhost:3000"),
			Language:  getEnv("PAWAPAY_LANGUAGE", pawapay.DefaultLanguage),
		},
		ProviderMaxConcurrency: concurrency,
		WebhookSecret:          os.Getenv("PAWAPAY_WEBHOOK_SECRET"),
		RequireSignature:       requireSignature,
		LimitsFile:             os.Getenv("PAYMENT_LIMITS_FILE"),
		MerchantName:           getEnv("MERCHANT_NAME", "eYote"),
		AllowedOrigins:         splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitPerSecond:     rate,
	}

	if cfg.Provider.APIToken == "" {
		return nil, ErrMissingAPIToken
	}
	return cfg, nil
}

// Fields returns the non-secret settings for startup logging
func (c *Config) Fields() log.Fields {
	return log.Fields{
		"port":              c.Port,
		"provider_url":      c.Provider.BaseURL,
		"callback_url":      c.Provider.ReturnURL,
		"signature_checked": c.WebhookSecret != "",
		"limits_file":       c.LimitsFile,
		"allowed_origins":   strings.Join(c.AllowedOrigins, ","),
		"rate_limit":        c.RateLimitPerSecond,
		"max_concurrency":   c.ProviderMaxConcurrency,
	}
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
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
