package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort string

	// Event store
	LocalDeployment bool
	SQLitePath      string
	PostgresDSN     string
	MongoURI        string
	MongoDatabase   string

	// Cola de entrega
	RedisAddr     string
	MaxAttempts   int
	BackoffBase   time.Duration
	LeaseDuration time.Duration

	// Entrega al destino
	DeliveryURL   string
	DeliveryToken string

	// Enriquecimiento geo
	GeoIPDBPath string

	// Archivo de eventos entregados
	UseKafka     bool
	KafkaBrokers []string
	KafkaTopic   string

	// Log analítico de intentos
	ClickHouseAddr string
	ClickHouseDB   string
}

func LoadConfig() *Config {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getEnvInt := func(key string, fallback int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return fallback
	}

	getEnvBool := func(key string, fallback bool) bool {
		if v := os.Getenv(key); v != "" {
			return v == "true" || v == "1"
		}
		return fallback
	}

	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		LocalDeployment: getEnvBool("LOCAL_DEPLOYMENT", true),
		SQLitePath:      getEnv("SQLITE_PATH", "./trackrelay_events.db"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "trackrelay"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		MaxAttempts:   getEnvInt("QUEUE_MAX_ATTEMPTS", 2),
		BackoffBase:   time.Duration(getEnvInt("QUEUE_BACKOFF_BASE_MS", 1000)) * time.Millisecond,
		LeaseDuration: time.Duration(getEnvInt("QUEUE_LEASE_MS", 30000)) * time.Millisecond,

		DeliveryURL:   getEnv("CAPI_URL", ""),
		DeliveryToken: getEnv("CAPI_TOKEN", ""),

		GeoIPDBPath: getEnv("GEOIP_DB_PATH", ""),

		UseKafka:     getEnvBool("USE_KAFKA", false),
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "conversion-events"),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "trackrelay"),
	}
}
