package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Stripe      StripeConfig
	Admin       AdminConfig
	Checkout    CheckoutConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	LockTimeout time.Duration
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type AdminConfig struct {
	APIKeyHash string
}

type CheckoutConfig struct {
	Timeout      time.Duration
	ShippingRate decimal.Decimal
	Currency     string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	lockTimeout, err := getDuration("DB_LOCK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	idempotencyTTL, err := getDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	checkoutTimeout, err := getDuration("CHECKOUT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	shippingRate, err := decimal.NewFromString(getEnvOrViper("SHIPPING_FLAT_RATE", "15.00"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHIPPING_FLAT_RATE: %w", err)
	}
	if shippingRate.IsNegative() {
		return nil, fmt.Errorf("SHIPPING_FLAT_RATE must not be negative")
	}

	redisDB := 0
	if v := getEnvOrViper("REDIS_DB", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &redisDB); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:        getEnvOrViper("DB_HOST", "localhost"),
			Port:        getEnvOrViper("DB_PORT", "5432"),
			User:        getEnvOrViper("DB_USER", "postgres"),
			Password:    getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:      getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:     getEnvOrViper("DB_SSLMODE", "disable"),
			LockTimeout: lockTimeout,
		},
		Redis: RedisConfig{
			Addr:           getEnvOrViper("REDIS_ADDR", ""),
			Password:       getEnvOrViper("REDIS_PASSWORD", ""),
			DB:             redisDB,
			IdempotencyTTL: idempotencyTTL,
		},
		Stripe: StripeConfig{
			SecretKey:     getEnvOrViper("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnvOrViper("STRIPE_WEBHOOK_SECRET", ""),
		},
		Admin: AdminConfig{
			APIKeyHash: getEnvOrViper("ADMIN_API_KEY_HASH", ""),
		},
		Checkout: CheckoutConfig{
			Timeout:      checkoutTimeout,
			ShippingRate: shippingRate,
			Currency:     getEnvOrViper("CURRENCY", "eur"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Admin routes are unusable without a key hash outside development
	if cfg.Admin.APIKeyHash == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("ADMIN_API_KEY_HASH is required in production")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
