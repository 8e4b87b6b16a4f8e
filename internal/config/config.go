package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	MarketData MarketDataConfig
	Jobs       JobsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers     []string
	PriceTopic  string
	EventsTopic string
	GroupID     string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MarketDataConfig holds the external provider configuration. APIKey is
// required; startup fails without it.
type MarketDataConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
}

// JobsConfig holds the background job intervals. MisfireGrace defaults to
// the average of the two intervals when not set explicitly.
type JobsConfig struct {
	PriceRefreshInterval  time.Duration
	HistoryUpdateInterval time.Duration
	MisfireGrace          time.Duration
	RefreshConcurrency    int
}

// Load reads configuration from the environment, after loading .env if
// one is present. A missing provider API key is the only fatal class.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("ALPHAVANTAGE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ALPHAVANTAGE_API_KEY is required")
	}

	refreshInterval := time.Duration(getEnvInt("STOCK_PRICES_INTERVAL_UPDATES_SECONDS", 60)) * time.Second
	historyInterval := time.Duration(getEnvInt("PORTFOLIO_HISTORY_UPDATE_INTERVAL_SECONDS", 3600)) * time.Second

	grace := time.Duration(getEnvInt("MISFIRE_GRACE_TIME_SECONDS", 0)) * time.Second
	if grace <= 0 {
		grace = (refreshInterval + historyInterval) / 2
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portfolioservice"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:     []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			PriceTopic:  getEnv("KAFKA_PRICE_TOPIC", "price-ticks"),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "portfolio-events"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "portfolio-service"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		MarketData: MarketDataConfig{
			BaseURL:           getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
			APIKey:            apiKey,
			RequestsPerMinute: getEnvInt("MARKETDATA_REQUESTS_PER_MINUTE", 60),
		},
		Jobs: JobsConfig{
			PriceRefreshInterval:  refreshInterval,
			HistoryUpdateInterval: historyInterval,
			MisfireGrace:          grace,
			RefreshConcurrency:    getEnvInt("REFRESH_CONCURRENCY", 8),
		},
	}, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
