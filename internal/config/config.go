package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Payment  PaymentConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Port            string
	CSRF            bool
	CookieSecure    bool
	RateLimit       int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN  string // sqlite path / ":memory:" or a postgres:// URL
	Seed bool
}

type LogConfig struct {
	Level    string
	Encoding string // json | console
	File     string
}

// GatewayConfig holds the QR payment provider settings. The two tokens are
// secrets and have no defaults.
type GatewayConfig struct {
	BaseURL      string
	TokenService string
	TokenSecret  string
	CommerceID   string
	CallbackURL  string
	ReturnURL    string
	Currency     int
	ClientAmount string
	TaxID        string
	Timeout      time.Duration
}

type CheckoutConfig struct {
	Strategy string // gateway | direct
}

type PaymentConfig struct {
	VerifyFinalize bool
	RelaySecret    string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const (
	StrategyGateway = "gateway"
	StrategyDirect  = "direct"
)

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8081"),
			CSRF:            getEnvBool("CSRF_ENABLED", true),
			CookieSecure:    getEnvBool("COOKIE_SECURE", false),
			RateLimit:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:  getEnv("DB_DSN", "qrshop.db"),
			Seed: getEnvBool("DB_SEED", true),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
			File:     getEnv("LOG_FILE", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:      strings.TrimRight(getEnv("GATEWAY_BASE_URL", "https://serviciostigomoney.pagofacil.com.bo/api/servicio"), "/"),
			TokenService: os.Getenv("GATEWAY_TOKEN_SERVICE"),
			TokenSecret:  os.Getenv("GATEWAY_TOKEN_SECRET"),
			CommerceID:   getEnv("GATEWAY_COMMERCE_ID", ""),
			CallbackURL:  getEnv("GATEWAY_CALLBACK_URL", ""),
			ReturnURL:    getEnv("GATEWAY_RETURN_URL", ""),
			Currency:     getEnvInt("GATEWAY_CURRENCY", 2),
			ClientAmount: getEnv("GATEWAY_CLIENT_AMOUNT", "0.01"),
			TaxID:        getEnv("GATEWAY_TAX_ID", "1234567"),
			Timeout:      getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Checkout: CheckoutConfig{
			Strategy: strings.ToLower(getEnv("CHECKOUT_STRATEGY", StrategyGateway)),
		},
		Payment: PaymentConfig{
			VerifyFinalize: getEnvBool("PAYMENT_VERIFY_FINALIZE", true),
			RelaySecret:    os.Getenv("CALLBACK_RELAY_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_SALES_TOPIC", "sales.events"),
		},
	}
}

func (c Config) Validate() error {
	switch c.Checkout.Strategy {
	case StrategyDirect:
	case StrategyGateway:
		if c.Gateway.TokenService == "" || c.Gateway.TokenSecret == "" {
			return errors.New("config: gateway checkout needs GATEWAY_TOKEN_SERVICE and GATEWAY_TOKEN_SECRET")
		}
		if c.Gateway.CommerceID == "" {
			return errors.New("config: gateway checkout needs GATEWAY_COMMERCE_ID")
		}
	default:
		return errors.New("config: CHECKOUT_STRATEGY must be gateway or direct")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("config: GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
