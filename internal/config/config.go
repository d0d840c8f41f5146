package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the docsense server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Mayan    MayanConfig
	AI       AIConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// MayanConfig points at the Mayan EDMS instance that owns document storage
// and OCR extraction.
type MayanConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// JobsConfig bounds the background analysis pipeline.
type JobsConfig struct {
	MaxConcurrent int
	QueueSize     int
	Deadline      time.Duration
	RetentionDays int
}

var validProviders = map[string]bool{
	"ollama": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DOCSENSE_PORT", 8080),
			Env:  envString("DOCSENSE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Mayan: MayanConfig{
			BaseURL:  os.Getenv("MAYAN_BASE_URL"),
			APIToken: os.Getenv("MAYAN_API_TOKEN"),
			Timeout:  envDuration("MAYAN_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "ollama"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3.2:3b"),
			},
		},
		Jobs: JobsConfig{
			MaxConcurrent: envInt("JOBS_MAX_CONCURRENT", 4),
			QueueSize:     envInt("JOBS_QUEUE_SIZE", 64),
			Deadline:      envDuration("JOBS_DEADLINE", 10*time.Minute),
			RetentionDays: envInt("JOBS_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Mayan.BaseURL == "" {
		return fmt.Errorf("MAYAN_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Mayan.BaseURL, "http://") && !strings.HasPrefix(c.Mayan.BaseURL, "https://") {
		return fmt.Errorf("MAYAN_BASE_URL must start with http:// or https://, got %q", c.Mayan.BaseURL)
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, mock; got %q", c.AI.Provider)
	}

	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("JOBS_MAX_CONCURRENT must be at least 1, got %d", c.Jobs.MaxConcurrent)
	}
	if c.Jobs.QueueSize < 1 {
		return fmt.Errorf("JOBS_QUEUE_SIZE must be at least 1, got %d", c.Jobs.QueueSize)
	}
	if c.Jobs.RetentionDays < 0 {
		return fmt.Errorf("JOBS_RETENTION_DAYS must not be negative, got %d", c.Jobs.RetentionDays)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
