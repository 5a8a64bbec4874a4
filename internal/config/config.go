package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Ledger   LedgerConfig   `mapstructure:"ledger" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains settings for the operational HTTP endpoint.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig contains settings for the Redis-backed intent queue.
type QueueConfig struct {
	RedisAddr string `mapstructure:"redis_addr" validate:"required,hostname_port"`
	// Name is the queue intents are consumed from.
	Name string `mapstructure:"name" validate:"required"`
	// Concurrency is the number of in-process workers pulling from the queue.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`
}

// LedgerConfig contains settings for the ledger authority client.
type LedgerConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// AuthSecret signs the short-lived service tokens sent with every
	// ledger request.
	AuthSecret string `mapstructure:"auth_secret" validate:"required,min=32"`
	// TimeoutSeconds bounds a single ledger call, including on-chain
	// confirmation latency.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// PipelineConfig contains settings for the confirmation pipeline.
type PipelineConfig struct {
	// RetryLimit is the number of failed attempts after which a task is
	// marked permanently failed and its message acknowledged.
	RetryLimit int `mapstructure:"retry_limit" validate:"required,gt=0"`
}
