// Package config loads service configuration.
//
// Sources, highest priority first: environment variables, an optional
// config.yaml (path overridable via CONFIG_PATH), built-in defaults.
// Secrets (bot token, model API key) are not held here; they are resolved
// at startup through the secrets package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Transport modes.
const (
	ModeLongPoll = "longpoll"
	ModeWebhook  = "webhook"
)

// Secret names resolved through the secrets provider at startup.
const (
	SecretBotToken = "TELEGRAM_BOT_TOKEN"
	SecretAPIKey   = "GOOGLE_API_KEY"
)

var (
	// ErrMissingProjectID indicates GOOGLE_CLOUD_PROJECT is not set.
	ErrMissingProjectID = errors.New("missing project id")

	// ErrInvalidMode indicates an unrecognized transport mode.
	ErrInvalidMode = errors.New("invalid transport mode")

	// ErrInvalidPort indicates the listen port is not a valid port number.
	ErrInvalidPort = errors.New("invalid port")
)

// Config holds the application configuration.
type Config struct {
	ProjectID     string `mapstructure:"project_id"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Port          string `mapstructure:"port"`
	Mode          string `mapstructure:"transport_mode"`
	LogLevel      string `mapstructure:"log_level"`
}

// Addr returns the listen address for the HTTP surface.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Load reads configuration and validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("transport_mode", ModeLongPoll)
	v.SetDefault("log_level", "info")

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment overrides everything.
	_ = v.BindEnv("project_id", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("transport_mode", "TRANSPORT_MODE")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ProjectID == "" {
		return ErrMissingProjectID
	}
	switch c.Mode {
	case ModeLongPoll, ModeWebhook:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if n, err := strconv.Atoi(c.Port); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, c.Port)
	}
	return nil
}
