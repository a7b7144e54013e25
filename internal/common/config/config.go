// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Intake        IntakeConfig            `mapstructure:"intake"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Channel       ChannelConfig           `mapstructure:"channel"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	RequestIndex string   `mapstructure:"request_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Conversation Settings ---

// IntakeConfig holds the conversational knobs of the orchestrator and its flows.
type IntakeConfig struct {
	ResetKeywords      []string          `mapstructure:"reset_keywords"`
	CompletionKeywords []string          `mapstructure:"completion_keywords"`
	CarMaxAttachments  int               `mapstructure:"car_max_attachments"`
	RecentRequestLimit int               `mapstructure:"recent_request_limit"`
	LockTTL            int               `mapstructure:"lock_ttl"`     // milliseconds
	LockWait           int               `mapstructure:"lock_wait"`    // milliseconds
	DedupeTTL          int               `mapstructure:"dedupe_ttl"`   // milliseconds
	IngestTimeout      int               `mapstructure:"ingest_timeout"` // milliseconds
	AuditDisqualified  bool              `mapstructure:"audit_disqualified"`
	Templates          map[string]string `mapstructure:"templates"`
}

// StorageConfig describes where re-hosted attachments live.
type StorageConfig struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Folder        string `mapstructure:"folder"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// ChannelConfig holds settings for the messaging channel collaborator.
type ChannelConfig struct {
	MediaUsername string `mapstructure:"media_username"`
	MediaPassword string `mapstructure:"media_password"`
	Region        string `mapstructure:"region"`
	TopicARN      string `mapstructure:"topic_arn"`
}

// NotificationConfig holds settings for the finalization email.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		AdminTo   string `mapstructure:"admin_to"`
	} `mapstructure:"email"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}
