package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	// Platform share of every sale, in basis points (2000 = 20%).
	CommissionRateBps int64

	// Bound on every outbound gateway call made during checkout.
	GatewayTimeout time.Duration

	CheckoutSuccessURL string
	CheckoutCancelURL  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	Stripe      StripeConfig
	PayPal      PayPalConfig
	MercadoPago MercadoPagoConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	Mode         string
}

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "coursepay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),

		CommissionRateBps: commissionBps(),
		GatewayTimeout:    time.Duration(getenvInt("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,

		CheckoutSuccessURL: getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:  getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "coursepay"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		},
		PayPal: PayPalConfig{
			ClientID:     strings.TrimSpace(getenv("PAYPAL_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("PAYPAL_CLIENT_SECRET", "")),
			WebhookID:    strings.TrimSpace(getenv("PAYPAL_WEBHOOK_ID", "")),
			Mode:         strings.ToLower(getenv("PAYPAL_MODE", "sandbox")),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:   strings.TrimSpace(getenv("MERCADOPAGO_ACCESS_TOKEN", "")),
			WebhookSecret: strings.TrimSpace(getenv("MERCADOPAGO_WEBHOOK_SECRET", "")),
		},
	}

	return cfg
}

// commissionBps reads PLATFORM_COMMISSION_RATE as whole percent for
// compatibility with existing deployments, or PLATFORM_COMMISSION_BPS
// directly. BPS wins when both are set.
func commissionBps() int64 {
	if bps := getenvInt64("PLATFORM_COMMISSION_BPS", 0); bps > 0 {
		return bps
	}
	return getenvInt64("PLATFORM_COMMISSION_RATE", 20) * 100
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
