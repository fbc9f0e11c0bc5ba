package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env          string
	LogLevel     string
	HTTPAddr     string
	CORSOrigins  []string
	StoreBackend string
	MongoURI     string
	MongoDB      string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string
	PaymentsTopics     []string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	IdempotencyTTL time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool

	PropertiesFile      string
	HoldTTL             time.Duration
	StoreRetryBackoff   []time.Duration
	SweepInterval       time.Duration
	SweepRate           float64
	SweepBatch          int
	GenerateInterval    time.Duration
	GenerateMonthsAhead int
	ReconcileInterval   time.Duration
}

// Load parses configuration from the current environment after applying an
// optional .env file. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "rentalspot"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "rentalspot-calendar"),
		PaymentsTopics:     splitList(getEnv("PAYMENTS_TOPIC", "payments.events.v1,booking.events.v1")),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "rentalspot-reports"),
		S3Prefix:           getEnv("S3_PREFIX", "generation-reports"),
		PropertiesFile:     getEnv("PROPERTIES_FILE", "configs/properties.yaml"),
	}

	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationListEnv("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.StoreRetryBackoff, err = parseDurationListEnv("STORE_RETRY_BACKOFF", "50ms,200ms,500ms"); err != nil {
		return Config{}, err
	}
	if cfg.HoldTTL, err = parseDurationEnv("HOLD_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.GenerateInterval, err = parseDurationEnv("GENERATE_INTERVAL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepRate, err = parseFloatEnv("SWEEP_RATE", 0); err != nil {
		return Config{}, err
	}
	if cfg.SweepBatch, err = parseIntEnv("SWEEP_BATCH", 100); err != nil {
		return Config{}, err
	}
	if cfg.GenerateMonthsAhead, err = parseIntEnv("GENERATE_MONTHS_AHEAD", 12); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_BACKEND=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q: want memory or mongo", cfg.StoreBackend)
	}
	if cfg.HoldTTL <= 0 {
		return Config{}, fmt.Errorf("HOLD_TTL must be positive")
	}
	if cfg.GenerateMonthsAhead <= 0 {
		return Config{}, fmt.Errorf("GENERATE_MONTHS_AHEAD must be positive")
	}
	if cfg.SweepRate < 0 {
		return Config{}, fmt.Errorf("SWEEP_RATE must not be negative")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationListEnv(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range splitList(getEnv(key, def)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %q", key, raw)
	}
	return v, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %q", key, raw)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
