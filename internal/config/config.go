package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/membership/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment  DeploymentConfig  `validate:"required"`
	Server      ServerConfig      `validate:"required"`
	Logging     LoggingConfig     `validate:"required"`
	Postgres    PostgresConfig    `validate:"required"`
	Auth        AuthConfig        `validate:"required"`
	Stripe      StripeConfig      `validate:"required"`
	Entitlement EntitlementConfig `validate:"required"`
	Webhook     Webhook
	Temporal    TemporalConfig
	Sentry      SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required,oneof=local api temporal_worker"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required,oneof=debug info warn error"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

// AuthConfig holds the session token settings
type AuthConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required"`
	Issuer     string        `mapstructure:"issuer" default:"membership"`
	SessionTTL time.Duration `mapstructure:"session_ttl" default:"24h"`
	// CronKey guards the scheduled trigger endpoint
	CronKey string `mapstructure:"cron_key"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type TemporalConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	APIKey    string `mapstructure:"api_key"`
	TLS       bool   `mapstructure:"tls"`
	// SweepCron schedules the entitlement sweep workflow, empty disables it
	SweepCron string `mapstructure:"sweep_cron"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

func NewConfig() (*Configuration, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	// Modify config paths to ensure config.yaml is found
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/membership")

	// Set up environment variables support
	v.SetEnvPrefix("MEMBERSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
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

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from config.yaml
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", d.Postgres.ConnMaxLifetimeMinutes)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.session_ttl", d.Auth.SessionTTL)
	v.SetDefault("auth.cron_key", d.Auth.CronKey)

	v.SetDefault("stripe.secret_key", d.Stripe.SecretKey)

	v.SetDefault("entitlement.grace_period", d.Entitlement.GracePeriod)
	v.SetDefault("entitlement.trial_duration", d.Entitlement.TrialDuration)
	v.SetDefault("entitlement.lookahead_window", d.Entitlement.LookaheadWindow)
	v.SetDefault("entitlement.provider_timeout", d.Entitlement.ProviderTimeout)
	v.SetDefault("entitlement.min_reconcile_interval", d.Entitlement.MinReconcileInterval)
	v.SetDefault("entitlement.sweep_concurrency", d.Entitlement.SweepConcurrency)
	v.SetDefault("entitlement.sweep_rate_per_second", d.Entitlement.SweepRatePerSecond)
	v.SetDefault("entitlement.snapshot_refresh_interval", d.Entitlement.SnapshotRefreshInterval)
	v.SetDefault("entitlement.conflict_retry_delay", d.Entitlement.ConflictRetryDelay)

	v.SetDefault("webhook.enabled", d.Webhook.Enabled)
	v.SetDefault("webhook.topic", d.Webhook.Topic)
	v.SetDefault("webhook.pubsub", d.Webhook.PubSub)
	v.SetDefault("webhook.endpoint", d.Webhook.Endpoint)
	v.SetDefault("webhook.max_retries", d.Webhook.MaxRetries)
	v.SetDefault("webhook.initial_interval", d.Webhook.InitialInterval)
	v.SetDefault("webhook.max_interval", d.Webhook.MaxInterval)
	v.SetDefault("webhook.multiplier", d.Webhook.Multiplier)
	v.SetDefault("webhook.max_elapsed_time", d.Webhook.MaxElapsedTime)
	v.SetDefault("webhook.svix.enabled", d.Webhook.Svix.Enabled)
	v.SetDefault("webhook.svix.base_url", d.Webhook.Svix.BaseURL)
	v.SetDefault("webhook.svix.auth_token", d.Webhook.Svix.AuthToken)
	v.SetDefault("webhook.svix.app_id", d.Webhook.Svix.AppID)

	v.SetDefault("temporal.address", d.Temporal.Address)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("temporal.api_key", d.Temporal.APIKey)
	v.SetDefault("temporal.tls", d.Temporal.TLS)
	v.SetDefault("temporal.sweep_cron", d.Temporal.SweepCron)

	v.SetDefault("sentry.enabled", d.Sentry.Enabled)
	v.SetDefault("sentry.dsn", d.Sentry.DSN)
	v.SetDefault("sentry.environment", d.Sentry.Environment)
	v.SetDefault("sentry.sample_rate", d.Sentry.SampleRate)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Webhook.PubSub.Validate(); err != nil {
		return err
	}
	return c.Entitlement.Validate()
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "membership",
			Password:               "membership",
			DBName:                 "membership",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 60,
		},
		Auth: AuthConfig{
			Secret:     "local-development-secret",
			Issuer:     "membership",
			SessionTTL: 24 * time.Hour,
		},
		Entitlement: DefaultEntitlementConfig(),
		Webhook: Webhook{
			Topic:           "entitlement_webhooks",
			PubSub:          types.MemoryPubSub,
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2.0,
			MaxElapsedTime:  2 * time.Minute,
		},
		Temporal: TemporalConfig{
			Address:   "localhost:7233",
			Namespace: "default",
			TaskQueue: "membership-task-queue",
			SweepCron: "0 * * * *",
		},
		Sentry: SentryConfig{
			Environment: "local",
			SampleRate:  1.0,
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
