package config

import (
	"time"

	"github.com/flexprice/membership/internal/types"
)

// Webhook represents the configuration for the entitlement notification system
type Webhook struct {
	Enabled  bool             `mapstructure:"enabled"`
	Topic    string           `mapstructure:"topic" default:"entitlement_webhooks"`
	PubSub   types.PubSubType `mapstructure:"pubsub" default:"memory"`
	Endpoint string           `mapstructure:"endpoint"`
	// Headers are sent with every direct HTTP delivery
	Headers        map[string]string `mapstructure:"headers"`
	ExcludedEvents []string          `mapstructure:"excluded_events"`

	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`

	Svix SvixConfig `mapstructure:"svix"`
}

// SvixConfig routes deliveries through svix instead of direct HTTP
type SvixConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	AuthToken string `mapstructure:"auth_token"`
	AppID     string `mapstructure:"app_id"`
}
