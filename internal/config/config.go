// Package config loads runtime configuration from the environment. Every
// knob has a development-friendly default so the service boots with no
// environment at all, using in-memory stores and the log notification
// channel.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider holds the connection settings for one payment provider backend.
type Provider struct {
	BaseURL string
	APIKey  string
}

type Config struct {
	ServiceName string
	Env         string
	ListenAddr  string

	// Pricing applied server-side to every cart.
	Currency    string
	TaxBps      int64
	ShippingFee int64

	SessionTTL    time.Duration
	SweepInterval time.Duration

	// Redirect targets the callback endpoint sends the shopper to.
	SuccessURL string
	FailureURL string

	Card    Provider
	WalletA Provider
	WalletB Provider

	// Empty PostgresDSN or RedisAddr selects the in-memory fallback for the
	// corresponding store. Empty KafkaBrokers selects the log dispatcher.
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName: getenvDefault("SERVICE_NAME", "checkout"),
		Env:         getenvDefault("ENV", "dev"),
		ListenAddr:  getenvDefault("LISTEN_ADDR", ":8080"),

		Currency: getenvDefault("CURRENCY", "USD"),

		SuccessURL: getenvDefault("CHECKOUT_SUCCESS_URL", "/checkout/success"),
		FailureURL: getenvDefault("CHECKOUT_FAILURE_URL", "/checkout/failure"),

		Card: Provider{
			BaseURL: getenvDefault("CARD_BASE_URL", "http://localhost:9081"),
			APIKey:  os.Getenv("CARD_API_KEY"),
		},
		WalletA: Provider{
			BaseURL: getenvDefault("WALLET_A_BASE_URL", "http://localhost:9082"),
			APIKey:  os.Getenv("WALLET_A_API_KEY"),
		},
		WalletB: Provider{
			BaseURL: getenvDefault("WALLET_B_BASE_URL", "http://localhost:9083"),
			APIKey:  os.Getenv("WALLET_B_API_KEY"),
		},

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		KafkaTopic:  getenvDefault("KAFKA_NOTIFY_TOPIC", "order-confirmations"),
	}

	var err error
	if cfg.TaxBps, err = getenvInt64("TAX_BPS", 800); err != nil {
		return Config{}, err
	}
	if cfg.ShippingFee, err = getenvInt64("SHIPPING_FEE", 500); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.TaxBps < 0 {
		return Config{}, fmt.Errorf("config: TAX_BPS must not be negative")
	}
	if cfg.ShippingFee < 0 {
		return Config{}, fmt.Errorf("config: SHIPPING_FEE must not be negative")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
