// Package main provides the alertflow server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the alertflow daemon configuration.
type Config struct {
	Database Database `yaml:"database"`
	Rules    Rules    `yaml:"rules"`
	Engine   Eng      `yaml:"engine"`
	Sweep    Sweep    `yaml:"sweep"`
	Notify   Notify   `yaml:"notify"`
	Redis    Redis    `yaml:"redis"`
	Metrics  Metrics  `yaml:"metrics"`
	Verbose  bool     `yaml:"-"` // set via CLI flag
}

// Database contains storage settings.
type Database struct {
	Path string `yaml:"path"` // SQLite database path (default: data/alertflow.db)
}

// Rules contains rule file settings.
type Rules struct {
	File  string `yaml:"file"`  // YAML rule file loaded at startup (optional)
	Watch bool   `yaml:"watch"` // hot-reload the rule file on change
}

// Eng contains engine tuning.
type Eng struct {
	HistoryLimit   int    `yaml:"history_limit"`   // per-alert history bound (default: 100)
	IngestRetries  int    `yaml:"ingest_retries"`  // conflict retries (default: 3)
	SendTimeout    string `yaml:"send_timeout"`    // per-send timeout (default: 10s)
	SendRetries    int    `yaml:"send_retries"`    // send retries (default: 2)
	FlappingWindow string `yaml:"flapping_window"` // flapping detection window (default: 2m)
	FlappingCount  int    `yaml:"flapping_count"`  // severity changes tolerated (default: 2)
}

// Sweep contains background sweep intervals.
type Sweep struct {
	DelayedInterval    string `yaml:"delayed_interval"`    // default: 30s
	EscalationInterval string `yaml:"escalation_interval"` // default: 1m
	ReactivateInterval string `yaml:"reactivate_interval"` // default: 1m
}

// Notify contains sender settings.
type Notify struct {
	RatePerMinute  float64 `yaml:"rate_per_minute"` // outbound rate limit (default: 10)
	Burst          int     `yaml:"burst"`           // rate limit burst (default: 10)
	SMTPUsername   string  `yaml:"smtp_username"`
	SMTPPassword   string  `yaml:"-"`               // from ALERTFLOW_SMTP_PASSWORD
	WebhookTimeout string  `yaml:"webhook_timeout"` // default: 10s
}

// Redis contains claim guard settings. Empty address uses the in-process
// guard.
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"-"` // from ALERTFLOW_REDIS_PASSWORD
	DB       int    `yaml:"db"`
}

// Metrics contains metrics server settings.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default: :9090
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/alertflow.db"
	}
	if c.Engine.HistoryLimit == 0 {
		c.Engine.HistoryLimit = 100
	}
	if c.Engine.IngestRetries == 0 {
		c.Engine.IngestRetries = 3
	}
	if c.Engine.SendTimeout == "" {
		c.Engine.SendTimeout = "10s"
	}
	if c.Engine.SendRetries == 0 {
		c.Engine.SendRetries = 2
	}
	if c.Engine.FlappingWindow == "" {
		c.Engine.FlappingWindow = "2m"
	}
	if c.Engine.FlappingCount == 0 {
		c.Engine.FlappingCount = 2
	}
	if c.Sweep.DelayedInterval == "" {
		c.Sweep.DelayedInterval = "30s"
	}
	if c.Sweep.EscalationInterval == "" {
		c.Sweep.EscalationInterval = "1m"
	}
	if c.Sweep.ReactivateInterval == "" {
		c.Sweep.ReactivateInterval = "1m"
	}
	if c.Notify.RatePerMinute == 0 {
		c.Notify.RatePerMinute = 10
	}
	if c.Notify.Burst == 0 {
		c.Notify.Burst = 10
	}
	if c.Notify.WebhookTimeout == "" {
		c.Notify.WebhookTimeout = "10s"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	c.Notify.SMTPPassword = os.Getenv("ALERTFLOW_SMTP_PASSWORD")
	c.Redis.Password = os.Getenv("ALERTFLOW_REDIS_PASSWORD")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	durations := map[string]string{
		"engine.send_timeout":       c.Engine.SendTimeout,
		"engine.flapping_window":    c.Engine.FlappingWindow,
		"sweep.delayed_interval":    c.Sweep.DelayedInterval,
		"sweep.escalation_interval": c.Sweep.EscalationInterval,
		"sweep.reactivate_interval": c.Sweep.ReactivateInterval,
		"notify.webhook_timeout":    c.Notify.WebhookTimeout,
	}
	for field, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if c.Rules.Watch && c.Rules.File == "" {
		return fmt.Errorf("rules.file is required when rules.watch is enabled")
	}
	return nil
}

// duration parses a validated duration field.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
