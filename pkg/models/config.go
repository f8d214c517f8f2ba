package models

import "time"

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HTTPConfig controls the PREQSTATION API client.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AlertConfig controls alerts derived from the call journal.
type AlertConfig struct {
	Window       time.Duration `yaml:"window" mapstructure:"window"`
	FailureRate  float64       `yaml:"failure_rate" mapstructure:"failure_rate"`
	MinCalls     int           `yaml:"min_calls" mapstructure:"min_calls"`
	BlockedHours int           `yaml:"blocked_hours" mapstructure:"blocked_hours"`
	ReviewHours  int           `yaml:"review_hours" mapstructure:"review_hours"`
	SlackWebhook string        `yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
}

// Config holds the runtime settings read from PREQSTATION_* environment
// variables and an optional YAML file via Viper.
type Config struct {
	Token         string      `yaml:"token" mapstructure:"token"`
	APIURL        string      `yaml:"api_url" mapstructure:"api_url"`
	DefaultEngine Engine      `yaml:"engine" mapstructure:"engine"`
	HTTP          HTTPConfig  `yaml:"http" mapstructure:"http"`
	EventLogPath  string      `yaml:"event_log,omitempty" mapstructure:"event_log"`
	Log           LogConfig   `yaml:"log" mapstructure:"log"`
	Alerts        AlertConfig `yaml:"alerts" mapstructure:"alerts"`
}

// Redacted returns a copy of c that is safe to print.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "********"
	}
	if c.Alerts.SlackWebhook != "" {
		c.Alerts.SlackWebhook = "********"
	}
	return c
}
