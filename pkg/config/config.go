package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret signs tokens when JWT_SECRET is unset. Only fit for local runs.
const DefaultJWTSecret = "secret"

// Config holds application configuration from environment variables
type Config struct {
	// Application
	AppPort   string
	LogLevel  string
	LogFormat string // json or console

	// Storage
	StorageBackend   string // mysql or memory
	SeedProductsFile string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis cart cache, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisCartTTL  time.Duration

	// Identity
	JWTSecret string

	Checkout CheckoutConfig

	// OpenTelemetry
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPHeaders   string // For SigNoz Cloud: signoz-ingestion-key=<key>
	OTELExporterOTLPInsecure  bool   // true for http://, false for https://
	OTELMetricsEnabled        bool
	OTELServiceName           string
	OTELServiceVersion        string
	OTELDeploymentEnvironment string
}

// CheckoutConfig carries the checkout rules injected into the checkout service.
type CheckoutConfig struct {
	PaymentMethod         string
	FreeShippingThreshold int64 // subtotal strictly above this ships free
	ShippingFee           int64
}

// DefaultCheckoutConfig returns the shipping and payment rules used when nothing is configured.
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		PaymentMethod:         "COD",
		FreeShippingThreshold: 500000,
		ShippingFee:           30000,
	}
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() *Config {
	// .env is optional; only a malformed file is worth a warning
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	defaults := DefaultCheckoutConfig()

	return &Config{
		AppPort:   getEnv("APP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StorageBackend:   getEnv("STORAGE_BACKEND", "mysql"),
		SeedProductsFile: getEnv("SEED_PRODUCTS_FILE", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "ecommerce"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisCartTTL:  getEnvDuration("REDIS_CART_TTL", 15*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", DefaultJWTSecret),

		Checkout: CheckoutConfig{
			PaymentMethod:         getEnv("PAYMENT_METHOD", defaults.PaymentMethod),
			FreeShippingThreshold: getEnvInt64("FREE_SHIPPING_THRESHOLD", defaults.FreeShippingThreshold),
			ShippingFee:           getEnvInt64("SHIPPING_FEE", defaults.ShippingFee),
		},

		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPHeaders:   getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "ecommerce-checkout"),
		OTELServiceVersion:        getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTELDeploymentEnvironment: getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),
	}
}

// UsesDefaultJWTSecret reports whether tokens are signed with the built-in secret.
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("Warning: %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: %s=%q is not a duration, using %s", key, value, defaultValue)
	}
	return defaultValue
}
