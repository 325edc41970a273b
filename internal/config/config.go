package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Broker         BrokerConfig
	Database       DatabaseConfig
	Logging        LoggingConfig
	Notification   NotificationConfig
	Consumer       ConsumerConfig
	DLQ            DLQConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers    []string    `mapstructure:"brokers"`
	GroupID    string      `mapstructure:"group_id"`
	InputTopic string      `mapstructure:"input_topic"`
	DLQTopic   string      `mapstructure:"dlq_topic"`
	Retry      RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotificationConfig drives recipient resolution, mail transport and the
// publisher's producer identity. CC policy is layered on top from the
// NOTIFICATION_CC_* environment variables at process start.
type NotificationConfig struct {
	TargetEmail     string          `mapstructure:"target_email"`
	FromEmail       string          `mapstructure:"from_email"`
	FrontendBaseURL string          `mapstructure:"frontend_base_url"`
	Source          string          `mapstructure:"source"`
	AllowedSources  []string        `mapstructure:"allowed_sources"`
	SMTP            SMTPConfig      `mapstructure:"smtp"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Dedup           DedupConfig     `mapstructure:"dedup"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type DedupConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type ConsumerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	BatchWindow     time.Duration `mapstructure:"batch_window"`
	MaxReceiveCount int           `mapstructure:"max_receive_count"`
}

type DLQConfig struct {
	RepeatedFailureThreshold int           `mapstructure:"repeated_failure_threshold"`
	AnalyzeLimit             int           `mapstructure:"analyze_limit"`
	Monitor                  MonitorConfig `mapstructure:"monitor"`
}

type MonitorConfig struct {
	WarningDepth  int64         `mapstructure:"warning_depth"`
	CriticalDepth int64         `mapstructure:"critical_depth"`
	WarningAge    time.Duration `mapstructure:"warning_age"`
	CriticalAge   time.Duration `mapstructure:"critical_age"`
	Interval      time.Duration `mapstructure:"interval"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
