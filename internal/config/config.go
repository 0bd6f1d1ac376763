package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Health-monitoring API fetch settings.
	APIBaseURL      string
	APITimeout      time.Duration
	APIPageSize     int
	RefreshInterval time.Duration

	// Local JSON persistence of the raw dataset.
	DatasetPath string

	// Optional Kafka publishing of the refreshed composite series.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Catchment populations of the three contributing treatment plants.
	PopulationWeights domain.PopulationWeights
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	apiTimeout, err := parseDurationEnv("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDurationEnv("REFRESH_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	pageSize, err := parseIntEnv("API_PAGE_SIZE", 500)
	if err != nil {
		return nil, err
	}

	weights, err := parseWeights(envOrDefault("POPULATION_WEIGHTS",
		"Ruhleben=1600000,Waßmannsdorf=1100000,Schönerlinde=800000"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL:      envOrDefault("API_BASE_URL", "https://api.daten.berlin.de/v1/wastewater/samples"),
		APITimeout:      apiTimeout,
		APIPageSize:     pageSize,
		RefreshInterval: refreshInterval,

		DatasetPath: envOrDefault("DATASET_PATH", "data/dataset.json"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "wastewater-composite"),

		PopulationWeights: weights,
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.DatasetPath == "" {
		return nil, errors.New("DATASET_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

// parseWeights parses "station=population,station=population,..." into a
// validated weight table.
func parseWeights(s string) (domain.PopulationWeights, error) {
	weights := make(domain.PopulationWeights)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		station, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid POPULATION_WEIGHTS entry: %q", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid POPULATION_WEIGHTS entry: %q", pair)
		}
		weights[strings.TrimSpace(station)] = weight
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("POPULATION_WEIGHTS: %w", err)
	}
	return weights, nil
}
