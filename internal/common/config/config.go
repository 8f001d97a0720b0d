// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Emergency     EmergencyConfig     `mapstructure:"emergency"`
	Escalation    EscalationConfig    `mapstructure:"escalation"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Directory     ServiceClientConfig `mapstructure:"directory"`
	DeviceGateway ServiceClientConfig `mapstructure:"device_gateway"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// --- Domain Configuration Sections ---

// EmergencyConfig bounds the countdown grace period.
type EmergencyConfig struct {
	MinCountdownSeconds     int `mapstructure:"min_countdown_seconds"`
	MaxCountdownSeconds     int `mapstructure:"max_countdown_seconds"`
	DefaultCountdownSeconds int `mapstructure:"default_countdown_seconds"`
	AutoCountdownSeconds    int `mapstructure:"auto_countdown_seconds"`
}

// EscalationConfig drives the tier ladder. Tier 1 is the circle notified at
// activation; escalation advances through tiers 2..MaxTiers, then
// re-notification at the last tier continues until acknowledged/resolved.
type EscalationConfig struct {
	TierWindowSeconds       int `mapstructure:"tier_window_seconds"`
	RenotifyIntervalSeconds int `mapstructure:"renotify_interval_seconds"`
	MaxTiers                int `mapstructure:"max_tiers"`
	TickRetrySeconds        int `mapstructure:"tick_retry_seconds"`
}

func (e EscalationConfig) TierWindow() time.Duration {
	return time.Duration(e.TierWindowSeconds) * time.Second
}

func (e EscalationConfig) RenotifyInterval() time.Duration {
	return time.Duration(e.RenotifyIntervalSeconds) * time.Second
}

func (e EscalationConfig) TickRetry() time.Duration {
	return time.Duration(e.TickRetrySeconds) * time.Second
}

// NotificationConfig holds settings for the dispatcher binary.
type NotificationConfig struct {
	AWS   AWSConfig `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	Push struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"push"`
	RetryBackoffSeconds []int `mapstructure:"retry_backoff_seconds"`
	MaxAttempts         int   `mapstructure:"max_attempts"`
}

// AWSConfig selects the region and SNS/SES delivery identities.
type AWSConfig struct {
	Region             string `mapstructure:"region"`
	PlatformAppARN     string `mapstructure:"platform_app_arn"` // SNS mobile push application
	DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
}

// RetryBackoff returns the per-attempt delays as durations.
func (n NotificationConfig) RetryBackoff() []time.Duration {
	out := make([]time.Duration, 0, len(n.RetryBackoffSeconds))
	for _, s := range n.RetryBackoffSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// ServiceClientConfig holds settings for an external collaborator endpoint.
type ServiceClientConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
