package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Transports TransportsConfig `yaml:"transports"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Webhooks   WebhooksConfig   `yaml:"webhooks"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type TransportsConfig struct {
	OpenTimeout  time.Duration `yaml:"open_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DispatchConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type WebhookTarget struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

type WebhooksConfig struct {
	Targets     []WebhookTarget `yaml:"targets"`
	RetryCount  int             `yaml:"retry_count"`
	RetryDelay  time.Duration   `yaml:"retry_delay"`
	Timeout     time.Duration   `yaml:"timeout"`
	WorkerCount int             `yaml:"worker_count"`
	QueueSize   int             `yaml:"queue_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/printpool.db",
		},
		Transports: TransportsConfig{
			OpenTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Dispatch: DispatchConfig{
			MaxAttempts: 3,
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
			QueueSize:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRINTPOOL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTPOOL_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("PRINTPOOL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Transports.OpenTimeout < 0 {
		return fmt.Errorf("transport open timeout must be non-negative")
	}

	if c.Transports.WriteTimeout < 0 {
		return fmt.Errorf("transport write timeout must be non-negative")
	}

	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch max attempts must be at least 1")
	}

	if c.Webhooks.RetryCount < 0 {
		return fmt.Errorf("webhook retry count must be non-negative")
	}

	for i, t := range c.Webhooks.Targets {
		if t.URL == "" {
			return fmt.Errorf("webhook target %d has no url", i)
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
