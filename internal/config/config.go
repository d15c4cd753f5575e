// Package config provides service configuration loaded from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds agentkit service configuration.
type Config struct {
	// HTTP API
	HTTPAddr        string        `envconfig:"AGENTKIT_HTTP_ADDR" default:":8000"`
	ShutdownTimeout time.Duration `envconfig:"AGENTKIT_SHUTDOWN_TIMEOUT" default:"10s"`

	// Outbound calls to external tools and agent callbacks
	CallTimeout time.Duration `envconfig:"AGENTKIT_CALL_TIMEOUT" default:"15s"`

	// Deferred forward scheduler
	SchedulerWorkers int `envconfig:"AGENTKIT_SCHEDULER_WORKERS" default:"8"`
	SchedulerQueue   int `envconfig:"AGENTKIT_SCHEDULER_QUEUE" default:"256"`

	// Bootstrap seed
	BootstrapFile string `envconfig:"AGENTKIT_BOOTSTRAP_FILE"`

	// COMMS: NATS transport. Empty COMMSURL disables it.
	COMMSURL        string `envconfig:"COMMS_URL"`
	COMMSName       string `envconfig:"SERVICE_NAME" default:"agentkit"`
	RunSubject      string `envconfig:"AGENTKIT_RUN_SUBJECT" default:"agentkit.run"`
	DeliverySubject string `envconfig:"AGENTKIT_DELIVERY_SUBJECT" default:"agentkit.delivery"`

	// Database: delivery log. Empty DatabaseURL disables it.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Built-in tools
	EnableBuiltinTools bool   `envconfig:"AGENTKIT_ENABLE_BUILTIN_TOOLS" default:"true"`
	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey    string `envconfig:"ANTHROPIC_API_KEY"`
}

// LoadConfig loads configuration from environment variables. Each envFile that exists is
// loaded first (".env" when none are given); variables already set in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("%s - failed to load %s: %w", logPrefix, f, err)
		}
		slog.Debug(fmt.Sprintf("%s - Loaded env file %s", logPrefix, f))
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the service.
func (c *Config) ValidateForServe() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%s - AGENTKIT_HTTP_ADDR is required for serve", logPrefix)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s - AGENTKIT_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.SchedulerWorkers <= 0 {
		return fmt.Errorf("%s - AGENTKIT_SCHEDULER_WORKERS must be positive", logPrefix)
	}
	if c.SchedulerQueue <= 0 {
		return fmt.Errorf("%s - AGENTKIT_SCHEDULER_QUEUE must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - AGENTKIT_SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.COMMSEnabled() && c.RunSubject == "" {
		return fmt.Errorf("%s - AGENTKIT_RUN_SUBJECT is required when COMMS_URL is set", logPrefix)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%s - LOG_FORMAT must be text or json, got %q", logPrefix, c.LogFormat)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// DeliveryLogEnabled reports whether deferred deliveries are persisted to Postgres.
func (c *Config) DeliveryLogEnabled() bool {
	return c.DatabaseURL != ""
}

// COMMSEnabled reports whether the NATS transport is configured.
func (c *Config) COMMSEnabled() bool {
	return c.COMMSURL != ""
}

// SlogLevel maps LogLevel to a slog level; unknown values are info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
