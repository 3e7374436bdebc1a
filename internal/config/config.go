package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServiceName string         `yaml:"service_name"`
	ServicePort int            `yaml:"service_port"`
	LogLevel    string         `yaml:"log_level"`
	Database    DatabaseConfig `yaml:"database"`
	RabbitMQ    RabbitMQConfig `yaml:"rabbitmq"`
	Vehicle     VehicleConfig  `yaml:"vehicle"`
	Sync        SyncConfig     `yaml:"sync"`
	Anomaly     AnomalyConfig  `yaml:"anomaly"`
	HTTP        HTTPConfig     `yaml:"http"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL              string `yaml:"url"`
	IngestExchange   string `yaml:"ingest_exchange"`
	IngestQueue      string `yaml:"ingest_queue"`
	IngestRoutingKey string `yaml:"ingest_routing_key"`
	WorkerExchange   string `yaml:"worker_exchange"`
	WorkerRoutingKey string `yaml:"worker_routing_key"`
	RejectRoutingKey string `yaml:"reject_routing_key"`
	DLQQueue         string `yaml:"dlq_queue"`
	PrefetchCount    int    `yaml:"prefetch_count"`
}

// VehicleConfig holds the tracked vehicle's fixed properties
type VehicleConfig struct {
	TankCapacity float64 `yaml:"tank_capacity"`
}

// SyncConfig holds remote sync and local cache settings
type SyncConfig struct {
	Interval  time.Duration `yaml:"interval"`
	CachePath string        `yaml:"cache_path"`
}

// AnomalyConfig holds efficiency anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64 `yaml:"spike_threshold"`
	MinDataPointsForDetection int     `yaml:"min_data_points"`
	Window                    int     `yaml:"window"`
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		ServiceName: "fuel-mileage-worker",
		ServicePort: 8081,
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxConns: 4,
		},
		RabbitMQ: RabbitMQConfig{
			IngestExchange:   "fuel-mileage.ingest.exchange",
			IngestQueue:      "fuel-mileage.ingest.queue",
			IngestRoutingKey: "fuel.entry.command",
			WorkerExchange:   "fuel-mileage.worker.events.exchange",
			WorkerRoutingKey: "fuel.metrics.updated",
			RejectRoutingKey: "fuel.entry.rejected",
			DLQQueue:         "fuel-mileage.ingest.dlq",
			PrefetchCount:    10,
		},
		Vehicle: VehicleConfig{
			TankCapacity: 50,
		},
		Sync: SyncConfig{
			Interval:  time.Minute,
			CachePath: "data/fuel-cache.db",
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            2.0,
			MinDataPointsForDetection: 3,
			Window:                    10,
		},
		HTTP: HTTPConfig{
			RateLimitPerMinute: 120,
			RateLimitBurst:     20,
		},
	}
}

// Load loads configuration from defaults, the optional CONFIG_FILE and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.ServicePort = getEnvAsInt("SERVICE_PORT", cfg.ServicePort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", cfg.Database.MaxConns)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.IngestExchange = getEnv("RABBITMQ_INGEST_EXCHANGE", cfg.RabbitMQ.IngestExchange)
	cfg.RabbitMQ.IngestQueue = getEnv("RABBITMQ_INGEST_QUEUE", cfg.RabbitMQ.IngestQueue)
	cfg.RabbitMQ.IngestRoutingKey = getEnv("RABBITMQ_INGEST_ROUTING_KEY", cfg.RabbitMQ.IngestRoutingKey)
	cfg.RabbitMQ.WorkerExchange = getEnv("RABBITMQ_WORKER_EXCHANGE", cfg.RabbitMQ.WorkerExchange)
	cfg.RabbitMQ.WorkerRoutingKey = getEnv("RABBITMQ_WORKER_ROUTING_KEY", cfg.RabbitMQ.WorkerRoutingKey)
	cfg.RabbitMQ.RejectRoutingKey = getEnv("RABBITMQ_REJECT_ROUTING_KEY", cfg.RabbitMQ.RejectRoutingKey)
	cfg.RabbitMQ.DLQQueue = getEnv("RABBITMQ_DLQ_QUEUE", cfg.RabbitMQ.DLQQueue)
	cfg.RabbitMQ.PrefetchCount = getEnvAsInt("RABBITMQ_PREFETCH", cfg.RabbitMQ.PrefetchCount)

	cfg.Vehicle.TankCapacity = getEnvAsFloat("VEHICLE_TANK_CAPACITY", cfg.Vehicle.TankCapacity)

	cfg.Sync.Interval = getEnvAsDuration("SYNC_INTERVAL", cfg.Sync.Interval)
	cfg.Sync.CachePath = getEnv("SYNC_CACHE_PATH", cfg.Sync.CachePath)

	cfg.Anomaly.SpikeThreshold = getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", cfg.Anomaly.SpikeThreshold)
	cfg.Anomaly.MinDataPointsForDetection = getEnvAsInt("ANOMALY_MIN_DATA_POINTS", cfg.Anomaly.MinDataPointsForDetection)
	cfg.Anomaly.Window = getEnvAsInt("ANOMALY_WINDOW", cfg.Anomaly.Window)

	cfg.HTTP.RateLimitPerMinute = getEnvAsInt("HTTP_RATE_LIMIT_PER_MINUTE", cfg.HTTP.RateLimitPerMinute)
	cfg.HTTP.RateLimitBurst = getEnvAsInt("HTTP_RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst)
}

// Validate reports every missing or out of range setting at once
func (c *Config) Validate() error {
	var err error
	if c.Database.URL == "" {
		err = multierr.Append(err, fmt.Errorf("DATABASE_URL is required but not set in environment variables"))
	}
	if c.RabbitMQ.URL == "" {
		err = multierr.Append(err, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables"))
	}
	if !(c.Vehicle.TankCapacity > 0) {
		err = multierr.Append(err, fmt.Errorf("VEHICLE_TANK_CAPACITY must be positive, got %v", c.Vehicle.TankCapacity))
	}
	if c.Sync.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.Sync.Interval))
	}
	if c.Sync.CachePath == "" {
		err = multierr.Append(err, fmt.Errorf("SYNC_CACHE_PATH must not be empty"))
	}
	if c.HTTP.RateLimitPerMinute <= 0 {
		err = multierr.Append(err, fmt.Errorf("HTTP_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.HTTP.RateLimitPerMinute))
	}
	if c.HTTP.RateLimitBurst <= 0 {
		err = multierr.Append(err, fmt.Errorf("HTTP_RATE_LIMIT_BURST must be positive, got %d", c.HTTP.RateLimitBurst))
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
