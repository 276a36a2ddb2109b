package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	Poller   PollerConfig
	Receipt  ReceiptConfig
	LogDir   string
	LogLevel string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// AllowedOrigins feeds CORS for the browser checkout flow.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Username       string
	Password       string
	Database       string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
	AutoMigrate    bool
}

// DSN returns the postgres connection string for lib/pq and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LockTTL bounds a manual verification; EventTTL is how long webhook event ids are remembered.
	LockTTL  time.Duration
	LockWait time.Duration
	EventTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderStatus   string
	Notifications string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	ReturnURL     string
}

type AuthConfig struct {
	// Mode is "oidc" or "hmac".
	Mode       string
	IssuerURL  string
	ClientID   string
	HMACSecret string
	AdminRole  string
}

type CheckoutConfig struct {
	PlatformFeeRate float64
}

type PollerConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration
}

// ReceiptConfig enables review receipts when Secret is set.
type ReceiptConfig struct {
	Secret    string
	VerifyURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8080"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Username:       getEnv("DB_USERNAME", "reviews_user"),
			Password:       getEnv("DB_PASSWORD", "reviews_pass"),
			Database:       getEnv("DB_NAME", "reviews"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  getEnvDuration("VERIFY_LOCK_TTL", 30*time.Second),
			LockWait: getEnvDuration("VERIFY_LOCK_WAIT", 5*time.Second),
			EventTTL: getEnvDuration("WEBHOOK_EVENT_TTL", 72*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "ms-reviews"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderStatus:   getEnv("KAFKA_TOPIC_ORDER_STATUS", "reviews.order-status"),
				Notifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "reviews.notifications"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("STRIPE_CURRENCY", "usd"),
			ReturnURL:     getEnv("STRIPE_RETURN_URL", "http://localhost:3000/checkout/return?session_id={CHECKOUT_SESSION_ID}"),
		},
		Auth: AuthConfig{
			Mode:       getEnv("AUTH_MODE", "oidc"),
			IssuerURL:  getEnv("OIDC_ISSUER_URL", "http://localhost:8088/realms/reviews"),
			ClientID:   getEnv("OIDC_CLIENT_ID", "ms-reviews"),
			HMACSecret: getEnv("AUTH_HMAC_SECRET", ""),
			AdminRole:  getEnv("AUTH_ADMIN_ROLE", "admin"),
		},
		Checkout: CheckoutConfig{
			PlatformFeeRate: getEnvFloat("PLATFORM_FEE_RATE", 0.10),
		},
		Poller: PollerConfig{
			InitialDelay: getEnvDuration("POLL_INITIAL_DELAY", 2*time.Second),
			Interval:     getEnvDuration("POLL_INTERVAL", 2*time.Second),
			MaxDuration:  getEnvDuration("POLL_MAX_DURATION", 30*time.Second),
		},
		Receipt: ReceiptConfig{
			Secret:    getEnv("RECEIPT_SECRET", ""),
			VerifyURL: getEnv("RECEIPT_VERIFY_URL", "http://localhost:3000/receipts/verify"),
		},
		LogDir:   getEnv("LOG_DIR", "logs"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
