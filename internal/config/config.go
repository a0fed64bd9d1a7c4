package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tair/payment-reconciler/pkg/database"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StripeConfig holds gateway credentials and checkout settings
type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	APIBaseURL       string // empty means api.stripe.com
	SuccessURL       string
	CancelURL        string
	FeeName          string
	FeeAmount        int64
	Currency         string
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTPublicKey string // PEM encoded RSA public key
}

// Config is resolved once at startup and never mutated afterwards
type Config struct {
	ServiceName      string
	Environment      string
	LogLevel         string
	HTTPPort         string
	StoreDriver      string
	Database         database.Config
	Stripe           StripeConfig
	Auth             AuthConfig
	JaegerEndpoint   string
	TraceSampleRatio float64
	KafkaBrokers     []string
	RedisAddr        string
	RedisPassword    string
	EventCacheTTL    time.Duration
	ReconcileTimeout time.Duration

	// Checkout creation per user, enforced only when Redis is configured
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	feeAmount, err := strconv.ParseInt(getEnv("CHECKOUT_FEE_AMOUNT", "5000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_FEE_AMOUNT: %w", err)
	}

	tolerance, err := time.ParseDuration(getEnv("STRIPE_WEBHOOK_TOLERANCE", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STRIPE_WEBHOOK_TOLERANCE: %w", err)
	}

	reconcileTimeout, err := time.ParseDuration(getEnv("RECONCILE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_TIMEOUT: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("EVENT_CACHE_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_CACHE_TTL: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("CHECKOUT_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}

	rateWindow, err := time.ParseDuration(getEnv("CHECKOUT_RATE_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_RATE_WINDOW: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("TRACE_SAMPLE_RATIO", "1"), 64)
	if err != nil || sampleRatio < 0 || sampleRatio > 1 {
		return nil, fmt.Errorf("invalid TRACE_SAMPLE_RATIO %q: must be between 0 and 1", getEnv("TRACE_SAMPLE_RATIO", "1"))
	}

	cfg := &Config{
		ServiceName: getEnv("OTEL_SERVICE_NAME", "payment-service"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("PORT", getEnv("HTTP_PORT", "3000")),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "paymentdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Stripe: StripeConfig{
			SecretKey:        getEnv("STRIPE_KEY", ""),
			WebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
			WebhookTolerance: tolerance,
			APIBaseURL:       getEnv("STRIPE_API_BASE", ""),
			SuccessURL:       getEnv("SUCCESS_URL", "http://localhost:3000/success"),
			CancelURL:        getEnv("CANCEL_URL", "http://localhost:3000/cancel"),
			FeeName:          getEnv("CHECKOUT_FEE_NAME", "Premium access"),
			FeeAmount:        feeAmount,
			Currency:         strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),
		},
		Auth: AuthConfig{
			// Keys passed through env files often carry escaped newlines
			JWTPublicKey: strings.ReplaceAll(getEnv("JWT_PUBLIC_KEY", ""), `\n`, "\n"),
		},
		JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", ""),
		TraceSampleRatio: sampleRatio,
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		EventCacheTTL:    cacheTTL,
		ReconcileTimeout: reconcileTimeout,

		CheckoutRateLimit:  rateLimit,
		CheckoutRateWindow: rateWindow,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_KEY is required"))
	}
	if c.Stripe.FeeAmount < 0 {
		errs = append(errs, errors.New("CHECKOUT_FEE_AMOUNT must not be negative"))
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.ReconcileTimeout <= 0 {
		errs = append(errs, errors.New("RECONCILE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
