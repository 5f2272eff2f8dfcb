package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`

	// Storage. STORE_DRIVER selects mongo, postgres or memory.
	StoreDriver  string `mapstructure:"STORE_DRIVER"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Booking.
	Currency          string        `mapstructure:"CURRENCY"`
	BookingPendingTTL time.Duration `mapstructure:"BOOKING_PENDING_TTL"`
	ExpirySweepCron   string        `mapstructure:"EXPIRY_SWEEP_CRON"`

	// VNPay.
	VNPayTmnCode    string `mapstructure:"VNPAY_TMN_CODE"`
	VNPayHashSecret string `mapstructure:"VNPAY_HASH_SECRET"`
	VNPayPayURL     string `mapstructure:"VNPAY_PAY_URL"`
	VNPayReturnURL  string `mapstructure:"VNPAY_RETURN_URL"`

	// Stripe hosted checkout.
	StripeKey           string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeSuccessURL    string `mapstructure:"STRIPE_SUCCESS_URL"`
	StripeCancelURL     string `mapstructure:"STRIPE_CANCEL_URL"`

	// Path to the Firebase service account key; empty disables push delivery.
	FirebaseCredentials string `mapstructure:"FIREBASE_CREDENTIALS"`
}

var AppConfig Config

func LoadConfig() {
	// .env is a development convenience; production injects real env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 120)
	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	viper.SetDefault("STORE_DRIVER", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017/?replicaSet=rs0")
	viper.SetDefault("DATABASE_NAME", "tourbook")
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("CURRENCY", "VND")
	viper.SetDefault("BOOKING_PENDING_TTL", "30m")
	viper.SetDefault("EXPIRY_SWEEP_CRON", "@every 1m")
	viper.SetDefault("VNPAY_TMN_CODE", "")
	viper.SetDefault("VNPAY_HASH_SECRET", "")
	viper.SetDefault("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	viper.SetDefault("VNPAY_RETURN_URL", "http://localhost:8080/api/payments/vnpay/return")
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("STRIPE_SUCCESS_URL", "http://localhost:3000/bookings/success")
	viper.SetDefault("STRIPE_CANCEL_URL", "http://localhost:3000/bookings/cancel")
	viper.SetDefault("FIREBASE_CREDENTIALS", "")
}

// Validate rejects combinations that would fail at request time.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "mongo", "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.VNPayTmnCode != "" && c.VNPayHashSecret == "" {
		return fmt.Errorf("VNPAY_TMN_CODE is set but VNPAY_HASH_SECRET is empty")
	}
	if c.StripeKey != "" && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_KEY is set but STRIPE_WEBHOOK_SECRET is empty")
	}
	if c.BookingPendingTTL <= 0 {
		return fmt.Errorf("BOOKING_PENDING_TTL must be positive")
	}
	if c.JWTSecret == "" && c.Env == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// VNPayEnabled reports whether the VNPay gateway is configured.
func (c Config) VNPayEnabled() bool {
	return c.VNPayTmnCode != "" && c.VNPayHashSecret != ""
}

// StripeEnabled reports whether Stripe checkout is configured.
func (c Config) StripeEnabled() bool {
	return c.StripeKey != ""
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
