package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"prodigy/pkg/errors"
)

type Config struct {
	App           AppConfig
	AI            AIConfig
	Counsel       CounselConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	HTTP          HTTPConfig
	Reports       ReportsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"prodigy"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type AIConfig struct {
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	Model         string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`

	// Optional market research via an OpenAI-compatible xAI endpoint
	XAIKey     string `envconfig:"XAI_API_KEY"`
	XAIBaseURL string `envconfig:"XAI_BASE_URL" default:"https://api.x.ai/v1"`
	XAIModel   string `envconfig:"XAI_MODEL" default:"grok-beta"`

	CallTimeout      time.Duration `envconfig:"AI_CALL_TIMEOUT" default:"90s"`
	MaxAttempts      int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `envconfig:"AI_RETRY_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"AI_RETRY_MAX_DELAY" default:"5s"`
	RateLimitRPM     float64       `envconfig:"AI_RATE_LIMIT_RPM" default:"500"`
	RateLimitBurst   int           `envconfig:"AI_RATE_LIMIT_BURST" default:"50"`
	RateLimitEnabled bool          `envconfig:"AI_RATE_LIMIT_ENABLED" default:"true"`
}

// CounselConfig tunes the pipeline thresholds and budget
type CounselConfig struct {
	MaxQueriesPerTurn int           `envconfig:"COUNSEL_MAX_QUERIES" default:"2"`
	MaxRunCostUSD     float64       `envconfig:"COUNSEL_MAX_RUN_COST_USD" default:"0"` // 0 disables the guard
	MaxDailyCostUSD   float64       `envconfig:"COUNSEL_MAX_DAILY_COST_USD" default:"0"` // needs Redis
	RunTimeout        time.Duration `envconfig:"COUNSEL_RUN_TIMEOUT" default:"15m"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"prodigy"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

// Enabled reports whether a Postgres host is configured
func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"prodigy"`
}

// Enabled reports whether a ClickHouse host is configured
func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	RunTTL   time.Duration `envconfig:"REDIS_RUN_TTL" default:"168h"`
}

// Enabled reports whether a Redis host is configured
func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	StageTopic string   `envconfig:"KAFKA_STAGE_TOPIC" default:"counsel.stages"`
	RunTopic   string   `envconfig:"KAFKA_RUN_TOPIC" default:"counsel.runs"`
}

// Enabled reports whether any broker is configured
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type HTTPConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8080"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15m"`
}

type ReportsConfig struct {
	Dir  string `envconfig:"REPORTS_DIR" default:"reports"`
	Save bool   `envconfig:"REPORTS_SAVE" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.AI.MaxAttempts < 1 {
		return errors.NewValidationError("AI_MAX_ATTEMPTS", "must be at least 1", c.AI.MaxAttempts)
	}
	if c.Counsel.MaxQueriesPerTurn < 0 {
		return errors.NewValidationError("COUNSEL_MAX_QUERIES", "must not be negative", c.Counsel.MaxQueriesPerTurn)
	}
	if c.AI.CallTimeout <= 0 {
		return errors.NewValidationError("AI_CALL_TIMEOUT", "must be positive", c.AI.CallTimeout)
	}
	return nil
}
