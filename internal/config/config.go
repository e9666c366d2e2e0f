package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	BatchSize        int

	// SQLite database backing the geo cache, synonym store, failure
	// ledger, and manual queue.
	DBPath string

	// External geocoding provider (Nominatim-compatible).
	GeocoderEnabled bool
	GeocoderBaseURL string
	GeocoderContact string
	GeocoderRPS     float64
	GeocoderTimeout time.Duration

	// Retry scheduling for failed geocoding attempts.
	RetryBase       time.Duration
	RetryMaxBackoff time.Duration
	RetryJitter     time.Duration
	RetryThreshold  int

	// Cap on the mojibake repair fixed-point loop.
	NormalizeMaxPasses int
}

// Load reads configuration from environment variables, applying defaults
// where unset and failing on values that cannot be parsed.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := envDuration("GEOCODER_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	retryBase, err := envDuration("RETRY_BASE", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	retryMax, err := envDuration("RETRY_MAX_BACKOFF", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	retryJitter, err := envDuration("RETRY_JITTER", 30*time.Second)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	retryThreshold, err := envInt("RETRY_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}
	maxPasses, err := envInt("NORMALIZE_MAX_PASSES", 5)
	if err != nil {
		return nil, err
	}
	rps, err := envFloat("GEOCODER_RPS", 1)
	if err != nil {
		return nil, err
	}

	geocoderEnabled := true
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		geocoderEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GEOCODER_ENABLED: %q", v)
		}
	}

	cfg := &Config{
		KafkaBrokers:     splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-tour-stops"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "resolved-tour-stops"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "address-resolver"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		BatchSize:        batchSize,

		DBPath: envOrDefault("DB_PATH", "data/resolver.db"),

		GeocoderEnabled: geocoderEnabled,
		GeocoderBaseURL: envOrDefault("GEOCODER_BASE", "https://nominatim.openstreetmap.org/search"),
		GeocoderContact: os.Getenv("GEOCODER_CONTACT"),
		GeocoderRPS:     rps,
		GeocoderTimeout: geocoderTimeout,

		RetryBase:       retryBase,
		RetryMaxBackoff: retryMax,
		RetryJitter:     retryJitter,
		RetryThreshold:  retryThreshold,

		NormalizeMaxPasses: maxPasses,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderBaseURL == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_BASE is not set")
	}
	if cfg.RetryBase <= 0 || cfg.RetryMaxBackoff < cfg.RetryBase {
		return nil, errors.New("RETRY_MAX_BACKOFF must be >= RETRY_BASE > 0")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
