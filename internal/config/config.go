package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fleet-monitor/detector/internal/domain"
)

type Config struct {
	// HTTP
	HTTPPort string

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	KafkaPositionsTopic string
	KafkaEventsTopic    string

	// Pipeline channels
	WorkerChannelSize   int
	PositionChannelSize int
	EventChannelSize    int
	StateChannelSize    int

	// Batch writer tuning
	DBBatchSize       int
	DBFlushIntervalMS int

	// Worker counts
	AnalyzerWorkers int

	// Detection defaults
	Trips domain.TripConfig

	// How often geofences and calendars are reloaded from the database
	ReferenceRefresh time.Duration

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string

	LogLevel slog.Level
}

// Load reads configuration from the environment after applying envFile, if
// it exists. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8002"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "fleet_user"),
		DBPassword:          getEnv("DB_PASSWORD", "fleet_password"),
		DBName:              getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "event-detector"),
		KafkaPositionsTopic: getEnv("KAFKA_POSITIONS_TOPIC", "device.positions"),
		KafkaEventsTopic:    getEnv("KAFKA_EVENTS_TOPIC", ""),
		WorkerChannelSize:   getEnvInt("WORKER_CHANNEL_SIZE", 1000),
		PositionChannelSize: getEnvInt("POSITION_CHANNEL_SIZE", 10000),
		EventChannelSize:    getEnvInt("EVENT_CHANNEL_SIZE", 10000),
		StateChannelSize:    getEnvInt("STATE_CHANNEL_SIZE", 50000),
		DBBatchSize:         getEnvInt("DB_BATCH_SIZE", 500),
		DBFlushIntervalMS:   getEnvInt("DB_FLUSH_INTERVAL_MS", 100),
		AnalyzerWorkers:     getEnvInt("ANALYZER_WORKERS", 16),
		Trips: domain.TripConfig{
			MinimalStreak:          getEnvInt("TRIP_MINIMAL_STREAK", domain.DefaultTripConfig.MinimalStreak),
			MinimalTripDuration:    getEnvDuration("TRIP_MINIMAL_DURATION", domain.DefaultTripConfig.MinimalTripDuration),
			MinimalTripDistance:    getEnvFloat("TRIP_MINIMAL_DISTANCE", domain.DefaultTripConfig.MinimalTripDistance),
			MinimalParkingDuration: getEnvDuration("TRIP_MINIMAL_PARKING_DURATION", domain.DefaultTripConfig.MinimalParkingDuration),
			UseIgnition:            getEnvBool("TRIP_USE_IGNITION", domain.DefaultTripConfig.UseIgnition),
		},
		ReferenceRefresh:    getEnvDuration("REFERENCE_REFRESH_INTERVAL", 5*time.Minute),
		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        splitList(getEnv("VALID_API_KEYS", "")),
		LogLevel:            level,
	}, nil
}

func (c *Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBMaxConns,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
