package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Window   WindowConfig   `yaml:"window"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Safety   SafetyConfig   `yaml:"safety"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type WindowConfig struct {
	// Backend is "redis" or "memory".
	Backend string        `yaml:"backend"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type ModelConfig struct {
	Path            string  `yaml:"path"`
	// TrainIfMissing fits the synthetic baseline at startup when no model
	// file loads. Off by default: the rule scorer serves until a model is
	// trained with cmd/train.
	TrainIfMissing  bool    `yaml:"train_if_missing"`
	Contamination   float64 `yaml:"contamination"`
	TrainingSamples int     `yaml:"training_samples"`
	Trees           int     `yaml:"trees"`
	Seed            uint64  `yaml:"seed"`
}

type SafetyConfig struct {
	Timezone       string        `yaml:"timezone"`
	Lookback       time.Duration `yaml:"lookback"`
	AnomalyPenalty int           `yaml:"anomaly_penalty"`
	NightPenalty   int           `yaml:"night_penalty"`
	NightStartHour int           `yaml:"night_start_hour"`
	NightEndHour   int           `yaml:"night_end_hour"`
}

type NotifyConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	Timeout        time.Duration `yaml:"timeout"`
	QueueSize      int           `yaml:"queue_size"`
	Workers        int           `yaml:"workers"`
	RedisChannel   string        `yaml:"redis_channel"`
	KafkaBootstrap string        `yaml:"kafka_bootstrap_servers"`
	KafkaTopic     string        `yaml:"kafka_topic"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Window: WindowConfig{
			Backend: "redis",
			Size:    30,
			TTL:     24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/safety.db",
		},
		Model: ModelConfig{
			Path:            "./models/isolation_forest.json",
			TrainIfMissing:  false,
			Contamination:   0.1,
			TrainingSamples: 1000,
			Trees:           100,
			Seed:            42,
		},
		Safety: SafetyConfig{
			Timezone:       "Asia/Kolkata",
			Lookback:       24 * time.Hour,
			AnomalyPenalty: 15,
			NightPenalty:   10,
			NightStartHour: 22,
			NightEndHour:   5,
		},
		Notify: NotifyConfig{
			WebhookURL:   "http://localhost:8080/api/v1/alerts/anomaly",
			Timeout:      5 * time.Second,
			QueueSize:    1000,
			Workers:      2,
			RedisChannel: "admin_alerts",
			KafkaTopic:   "location-anomalies",
		},
	}
}

// Load reads the YAML file at path (a missing file is not an error) on top of
// the defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Window.Backend = getEnv("WINDOW_BACKEND", c.Window.Backend)
	c.Database.Driver = getEnv("STORE_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Model.Path = getEnv("MODEL_PATH", c.Model.Path)
	c.Model.TrainIfMissing = getEnvBool("MODEL_TRAIN_IF_MISSING", c.Model.TrainIfMissing)
	c.Model.Contamination = getEnvFloat("MODEL_CONTAMINATION", c.Model.Contamination)
	c.Safety.Timezone = getEnv("SAFETY_TIMEZONE", c.Safety.Timezone)
	c.Notify.WebhookURL = getEnv("EXPRESS_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.RedisChannel = getEnv("ALERT_REDIS_CHANNEL", c.Notify.RedisChannel)
	c.Notify.KafkaBootstrap = getEnv("KAFKA_BOOTSTRAP_SERVERS", c.Notify.KafkaBootstrap)
	c.Notify.KafkaTopic = getEnv("KAFKA_TOPIC", c.Notify.KafkaTopic)
}

func (c *Config) Validate() error {
	if c.Window.Size < 2 {
		return fmt.Errorf("window.size must be at least 2, got %d", c.Window.Size)
	}
	switch c.Window.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown window backend %q", c.Window.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Database.Driver)
	}
	if c.Model.Contamination <= 0 || c.Model.Contamination > 0.5 {
		return fmt.Errorf("model.contamination must be in (0, 0.5], got %v", c.Model.Contamination)
	}
	if c.Safety.NightStartHour < 0 || c.Safety.NightStartHour > 23 ||
		c.Safety.NightEndHour < 0 || c.Safety.NightEndHour > 23 {
		return fmt.Errorf("night hours must be within 0..23")
	}
	if _, err := time.LoadLocation(c.Safety.Timezone); err != nil {
		return fmt.Errorf("invalid safety timezone %q: %w", c.Safety.Timezone, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}
