package app

import (
	"os"
	"strings"
	"time"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// PostgresDSN пустой означает in-memory хранилища (dev/demo режим).
	PostgresDSN string

	// KafkaBrokers пустой отключает публикацию событий в Kafka.
	KafkaBrokers string

	RazorpayKeyID     string
	RazorpayKeySecret string

	ReaperInterval time.Duration
	ReaperTTL      time.Duration
}

// DefaultConfig возвращает базовые адреса и интервалы.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		ReaperInterval: 2 * time.Minute,
		ReaperTTL:      5 * time.Minute,
	}
}

// ReadConfig собирает конфигурацию из переменных окружения с
// префиксом STOREFRONT_, начиная с дефолтов.
func ReadConfig() Config {
	cfg := DefaultConfig()

	if v := envString("STOREFRONT_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := envString("STOREFRONT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.PostgresDSN = envString("STOREFRONT_POSTGRES_DSN")
	cfg.KafkaBrokers = envString("STOREFRONT_KAFKA_BROKERS")
	cfg.RazorpayKeyID = envString("STOREFRONT_RAZORPAY_KEY_ID")
	cfg.RazorpayKeySecret = envString("STOREFRONT_RAZORPAY_KEY_SECRET")

	if v := envDuration("STOREFRONT_REAPER_INTERVAL"); v > 0 {
		cfg.ReaperInterval = v
	}
	if v := envDuration("STOREFRONT_REAPER_TTL"); v > 0 {
		cfg.ReaperTTL = v
	}

	return cfg
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDuration(key string) time.Duration {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
