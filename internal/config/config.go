// Package config provides gateway configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds gateway configuration.
type Config struct {
	// HTTP API and websocket endpoint.
	HTTPAddr string `envconfig:"GATEWAY_HTTP_ADDR" default:":8000"`

	// NATS
	NATSURL  string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	NATSName string `envconfig:"SERVICE_NAME" default:"gateway"`
	// CommandSubject overrides the subject for signed commands over
	// NATS (empty = default).
	CommandSubject string `envconfig:"GATEWAY_COMMAND_SUBJECT"`

	// Project registry: Postgres when DATABASE_URL is set, otherwise a
	// static JSON file.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	ProjectsFile  string `envconfig:"GATEWAY_PROJECTS_FILE"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"25s"`

	// Connections
	HeartbeatInterval time.Duration `envconfig:"GATEWAY_HEARTBEAT_INTERVAL" default:"25s"`
	MessageRate       float64       `envconfig:"GATEWAY_MESSAGE_RATE" default:"100"`
	MessageBurst      int           `envconfig:"GATEWAY_MESSAGE_BURST" default:"200"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the gateway.
func (c *Config) ValidateForServe() error {
	if c.DatabaseURL == "" && c.ProjectsFile == "" {
		return fmt.Errorf("%s - DATABASE_URL or GATEWAY_PROJECTS_FILE is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - GATEWAY_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%s - GATEWAY_HEARTBEAT_INTERVAL must be positive", logPrefix)
	}
	if c.MessageRate < 0 {
		return fmt.Errorf("%s - GATEWAY_MESSAGE_RATE must not be negative", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, ensure-db, seed).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
