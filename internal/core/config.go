// Package core contains the business logic of the PREQSTATION MCP server:
// configuration, identifier normalization, engine resolution and the task
// operations exposed as MCP tools.
package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// EnvPrefix is prepended to every configuration key when read from the
// environment, e.g. PREQSTATION_API_URL.
const EnvPrefix = "PREQSTATION"

const (
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultHTTPTimeout = 30 * time.Second

	defaultAlertWindow       = 24 * time.Hour
	defaultAlertFailureRate  = 0.5
	defaultAlertMinCalls     = 5
	defaultAlertBlockedHours = 24
	defaultAlertReviewHours  = 72
)

// ConfigurationManager loads and validates the server configuration.
type ConfigurationManager interface {
	// Read loads raw values without validating them.
	Read() (*models.Config, error)
	// Validate checks cfg and normalizes the API URL and engine in place.
	Validate(cfg *models.Config) error
	// Load is Read followed by Validate.
	Load() (*models.Config, error)
}

// viperConfigManager implements ConfigurationManager with Viper, merging an
// optional YAML file with PREQSTATION_* environment variables.
type viperConfigManager struct {
	configFile  string
	searchPaths []string
}

// NewConfigurationManager creates a ConfigurationManager. When configFile is
// empty, a file named preqstation.yaml is looked up in searchPaths and its
// absence is not an error.
func NewConfigurationManager(configFile string, searchPaths ...string) ConfigurationManager {
	return &viperConfigManager{configFile: configFile, searchPaths: searchPaths}
}

func (cm *viperConfigManager) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if cm.configFile != "" {
		v.SetConfigFile(cm.configFile)
	} else {
		v.SetConfigName("preqstation")
		for _, p := range cm.searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("token", "")
	v.SetDefault("api_url", "")
	v.SetDefault("engine", "")
	v.SetDefault("event_log", "")
	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("alerts.window", defaultAlertWindow)
	v.SetDefault("alerts.failure_rate", defaultAlertFailureRate)
	v.SetDefault("alerts.min_calls", defaultAlertMinCalls)
	v.SetDefault("alerts.blocked_hours", defaultAlertBlockedHours)
	v.SetDefault("alerts.review_hours", defaultAlertReviewHours)
	v.SetDefault("alerts.slack_webhook", "")
	return v
}

// Read loads the configuration file (if any) and environment overrides.
func (cm *viperConfigManager) Read() (*models.Config, error) {
	v := cm.newViper()

	if cm.configFile != "" || len(cm.searchPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			// A missing file is only acceptable when it was searched for.
			var notFound viper.ConfigFileNotFoundError
			if cm.configFile != "" || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	return &models.Config{
		Token:         strings.TrimSpace(v.GetString("token")),
		APIURL:        strings.TrimSpace(v.GetString("api_url")),
		DefaultEngine: models.Engine(strings.TrimSpace(v.GetString("engine"))),
		HTTP: models.HTTPConfig{
			Timeout: v.GetDuration("http.timeout"),
		},
		EventLogPath: strings.TrimSpace(v.GetString("event_log")),
		Log: models.LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		},
		Alerts: models.AlertConfig{
			Window:       v.GetDuration("alerts.window"),
			FailureRate:  v.GetFloat64("alerts.failure_rate"),
			MinCalls:     v.GetInt("alerts.min_calls"),
			BlockedHours: v.GetInt("alerts.blocked_hours"),
			ReviewHours:  v.GetInt("alerts.review_hours"),
			SlackWebhook: strings.TrimSpace(v.GetString("alerts.slack_webhook")),
		},
	}, nil
}

// Validate rejects a missing token, an insecure or malformed API URL, an
// unknown default engine, a non-positive timeout, an unknown log format and
// out-of-range alert settings.
func (cm *viperConfigManager) Validate(cfg *models.Config) error {
	if cfg == nil {
		return &ConfigError{Msg: "configuration is nil"}
	}

	if cfg.Token == "" {
		return &ConfigError{Key: "token", Msg: "PREQSTATION MCP server requires PREQSTATION_TOKEN."}
	}

	apiURL, err := NormalizeAPIURL(cfg.APIURL)
	if err != nil {
		return err
	}
	cfg.APIURL = apiURL

	if cfg.DefaultEngine == "" {
		cfg.DefaultEngine = models.DefaultEngine
	} else {
		engine, ok := ParseEngine(string(cfg.DefaultEngine))
		if !ok {
			return &ConfigError{
				Key: "engine",
				Msg: fmt.Sprintf("PREQSTATION_ENGINE %q is invalid, must be one of: %s", cfg.DefaultEngine, engineList()),
			}
		}
		cfg.DefaultEngine = engine
	}

	if cfg.HTTP.Timeout <= 0 {
		return &ConfigError{Key: "http.timeout", Msg: fmt.Sprintf("http.timeout must be positive, got %s", cfg.HTTP.Timeout)}
	}

	switch cfg.Log.Format {
	case "json", "text":
	default:
		return &ConfigError{Key: "log.format", Msg: fmt.Sprintf("log.format %q is invalid, must be json or text", cfg.Log.Format)}
	}

	return validateAlerts(&cfg.Alerts)
}

func validateAlerts(a *models.AlertConfig) error {
	if a.Window <= 0 {
		return &ConfigError{Key: "alerts.window", Msg: fmt.Sprintf("alerts.window must be positive, got %s", a.Window)}
	}
	if a.FailureRate < 0 || a.FailureRate > 1 {
		return &ConfigError{Key: "alerts.failure_rate", Msg: fmt.Sprintf("alerts.failure_rate must be between 0 and 1, got %g", a.FailureRate)}
	}
	if a.MinCalls < 1 || a.BlockedHours < 1 || a.ReviewHours < 1 {
		return &ConfigError{Key: "alerts", Msg: "alerts.min_calls, alerts.blocked_hours and alerts.review_hours must be at least 1"}
	}
	if a.SlackWebhook != "" {
		u, err := url.Parse(a.SlackWebhook)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return &ConfigError{Key: "alerts.slack_webhook", Msg: "alerts.slack_webhook must be an https:// URL"}
		}
	}
	return nil
}

// Load reads and validates the configuration.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	cfg, err := cm.Read()
	if err != nil {
		return nil, err
	}
	if err := cm.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NormalizeAPIURL validates a PREQSTATION API base URL and returns it without
// a trailing slash. TLS is required except for loopback hosts.
func NormalizeAPIURL(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", &ConfigError{Key: "api_url", Msg: "PREQSTATION MCP server requires PREQSTATION_API_URL."}
	}

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", &ConfigError{Key: "api_url", Msg: "PREQSTATION_API_URL must be a valid URL."}
	}

	scheme := strings.ToLower(parsed.Scheme)
	isHTTPS := scheme == "https"
	isLocalHTTP := scheme == "http" && isLoopbackHost(parsed.Hostname())
	if !isHTTPS && !isLocalHTTP {
		return "", &ConfigError{
			Key: "api_url",
			Msg: "PREQSTATION_API_URL must use https:// (or http://localhost for local development).",
		}
	}

	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	return strings.TrimSuffix(parsed.String(), "/"), nil
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
