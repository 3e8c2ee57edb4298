package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/numbrly/portal/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Server       ServerConfig       `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Storage      StorageConfig      `validate:"required"`
	Numbers      NumbersConfig      `validate:"required"`
	Reaper       ReaperConfig       `validate:"required"`
	Refund       RefundConfig       `validate:"required"`
	Cache        CacheConfig        `validate:"required"`
	Redis        RedisConfig        `mapstructure:"redis"`
	PubSub       PubSubConfig       `mapstructure:"pubsub" validate:"required"`
	Kafka        KafkaConfig        `validate:"required"`
	Notification NotificationConfig `validate:"required"`
	Sentry       SentryConfig       `validate:"required"`
	Auth         AuthConfig         `validate:"required"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required,oneof=local api reaper"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// StorageConfig picks the repository backend. The memory driver is for local runs and tests.
type StorageConfig struct {
	Driver types.StorageDriver `validate:"required,oneof=postgres memory"`
}

type NumbersConfig struct {
	MaxHoldsPerUser int           `mapstructure:"max_holds_per_user" validate:"required,min=1"`
	HoldTTL         time.Duration `mapstructure:"hold_ttl" validate:"required"`
	MaxHoldTTL      time.Duration `mapstructure:"max_hold_ttl" validate:"required"`
}

type ReaperConfig struct {
	Enabled     bool
	Interval    time.Duration `validate:"required"`
	BatchSize   int           `mapstructure:"batch_size" validate:"required,min=1"`
	Concurrency int           `validate:"required,min=1"`
}

// RefundConfig bounds the inline retry of compensating credits
type RefundConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"required"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"required"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time" validate:"required"`
	Topic           string        `validate:"required"`
	PoisonTopic     string        `mapstructure:"poison_topic" validate:"required"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=0"`
}

type CacheConfig struct {
	Enabled       bool
	Driver        types.CacheDriver `validate:"required,oneof=memory redis"`
	IdempotentTTL time.Duration     `mapstructure:"idempotent_ttl"`
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	UseTLS    bool   `mapstructure:"use_tls"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PubSubConfig struct {
	Type        types.PubSubType `validate:"required,oneof=memory kafka"`
	EventsTopic string           `mapstructure:"events_topic" validate:"required"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string `mapstructure:"consumer_group"`
	ClientID      string `mapstructure:"client_id"`
	TLS           bool   `mapstructure:"tls"`
	UseSASL       bool   `mapstructure:"use_sasl"`
	SASLUser      string `mapstructure:"sasl_user"`
	SASLPassword  string `mapstructure:"sasl_password"`
}

type NotificationConfig struct {
	Enabled    bool
	WebhookURL string            `mapstructure:"webhook_url"`
	Headers    map[string]string `mapstructure:"headers"`
	MaxRetries int               `mapstructure:"max_retries"`
	Timeout    time.Duration
}

type SentryConfig struct {
	Enabled     bool
	DSN         string `mapstructure:"dsn"`
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

// RateLimitConfig applies per caller to the mutating number endpoints
type RateLimitConfig struct {
	Enabled bool
	RPS     float64 `mapstructure:"rps"`
	Burst   int
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only fills variables that are not already set
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/numbrly")

	v.SetEnvPrefix("NUMBRLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("numbers.max_holds_per_user", d.Numbers.MaxHoldsPerUser)
	v.SetDefault("numbers.hold_ttl", d.Numbers.HoldTTL)
	v.SetDefault("numbers.max_hold_ttl", d.Numbers.MaxHoldTTL)
	v.SetDefault("reaper.enabled", d.Reaper.Enabled)
	v.SetDefault("reaper.interval", d.Reaper.Interval)
	v.SetDefault("reaper.batch_size", d.Reaper.BatchSize)
	v.SetDefault("reaper.concurrency", d.Reaper.Concurrency)
	v.SetDefault("refund.initial_interval", d.Refund.InitialInterval)
	v.SetDefault("refund.max_interval", d.Refund.MaxInterval)
	v.SetDefault("refund.max_elapsed_time", d.Refund.MaxElapsedTime)
	v.SetDefault("refund.topic", d.Refund.Topic)
	v.SetDefault("refund.poison_topic", d.Refund.PoisonTopic)
	v.SetDefault("refund.max_retries", d.Refund.MaxRetries)
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.idempotent_ttl", d.Cache.IdempotentTTL)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "numbrly:")
	v.SetDefault("pubsub.type", d.PubSub.Type)
	v.SetDefault("pubsub.events_topic", d.PubSub.EventsTopic)
	v.SetDefault("kafka.consumer_group", "numbrly-portal")
	v.SetDefault("kafka.client_id", "numbrly-portal")
	v.SetDefault("notification.max_retries", d.Notification.MaxRetries)
	v.SetDefault("notification.timeout", d.Notification.Timeout)
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Numbers.MaxHoldTTL < c.Numbers.HoldTTL {
		return fmt.Errorf("numbers.max_hold_ttl (%s) must not be shorter than numbers.hold_ttl (%s)",
			c.Numbers.MaxHoldTTL, c.Numbers.HoldTTL)
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Storage:    StorageConfig{Driver: types.StorageDriverMemory},
		Numbers: NumbersConfig{
			MaxHoldsPerUser: 5,
			HoldTTL:         24 * time.Hour,
			MaxHoldTTL:      72 * time.Hour,
		},
		Reaper: ReaperConfig{
			Enabled:     true,
			Interval:    30 * time.Second,
			BatchSize:   500,
			Concurrency: 8,
		},
		Refund: RefundConfig{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			MaxElapsedTime:  10 * time.Second,
			Topic:           "refund.pending",
			PoisonTopic:     "refund.poison",
			MaxRetries:      10,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Driver:        types.CacheDriverMemory,
			IdempotentTTL: 24 * time.Hour,
		},
		PubSub: PubSubConfig{
			Type:        types.MemoryPubSub,
			EventsTopic: "number.events",
		},
		Notification: NotificationConfig{
			MaxRetries: 3,
			Timeout:    5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

func (c RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
