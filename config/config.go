// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the service and CLI read.
type Config struct {
	AppEnv       string `mapstructure:"app_env"`
	ListenAddr   string `mapstructure:"listen_addr"`
	DatabasePath string `mapstructure:"database_path"`
	LogLevel     string `mapstructure:"log_level"`

	SecretKey      string        `mapstructure:"secret_key"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	LoginRateLimit int           `mapstructure:"login_rate_limit"`
	TotemAPIKey    string        `mapstructure:"totem_api_key"`

	MPAppID       string `mapstructure:"mp_app_id"`
	MPSecretKey   string `mapstructure:"mp_secret_key"`
	MPRedirectURI string `mapstructure:"mp_redirect_uri"`
	MPAuthURL     string `mapstructure:"mp_auth_url"`
	MPTokenURL    string `mapstructure:"mp_token_url"`

	TokenStaleThreshold time.Duration `mapstructure:"token_stale_threshold"`
	TokenLifetime       time.Duration `mapstructure:"token_lifetime"`
	ProcessorTimeout    time.Duration `mapstructure:"processor_timeout"`
	RefreshTimeout      time.Duration `mapstructure:"refresh_timeout"`

	DashboardURL string `mapstructure:"dashboard_url"`
	RedisURL     string `mapstructure:"redis_url"`
}

var defaults = map[string]any{
	"app_env":               "development",
	"listen_addr":           ":8000",
	"database_path":         "data/totempark.db",
	"log_level":             "info",
	"secret_key":            "",
	"access_token_ttl":      30 * time.Minute,
	"login_rate_limit":      10,
	"totem_api_key":         "",
	"mp_app_id":             "",
	"mp_secret_key":         "",
	"mp_redirect_uri":       "http://localhost:8000/mercadopago/connect",
	"mp_auth_url":           "https://auth.mercadopago.com/authorization",
	"mp_token_url":          "https://api.mercadopago.com/oauth/token",
	"token_stale_threshold": 5*time.Hour + 30*time.Minute,
	"token_lifetime":        6 * time.Hour,
	"processor_timeout":     10 * time.Second,
	"refresh_timeout":       15 * time.Second,
	"dashboard_url":         "/dashboard",
	"redis_url":             "",
}

// Load reads path when it is non-empty and overlays environment variables
// named after the upper-cased keys, e.g. MP_APP_ID or TOKEN_STALE_THRESHOLD.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.TokenLifetime <= 0 {
		errs = append(errs, fmt.Errorf("token_lifetime must be positive, got %s", c.TokenLifetime))
	}
	if c.TokenStaleThreshold <= 0 || c.TokenStaleThreshold >= c.TokenLifetime {
		errs = append(errs, fmt.Errorf("token_stale_threshold (%s) must be positive and below token_lifetime (%s)",
			c.TokenStaleThreshold, c.TokenLifetime))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("access_token_ttl must be positive, got %s", c.AccessTokenTTL))
	}
	if c.ProcessorTimeout <= 0 || c.RefreshTimeout <= 0 {
		errs = append(errs, errors.New("processor_timeout and refresh_timeout must be positive"))
	}
	if c.LoginRateLimit < 1 {
		errs = append(errs, fmt.Errorf("login_rate_limit must be at least 1, got %d", c.LoginRateLimit))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database_path cannot be empty"))
	}
	return errors.Join(errs...)
}

// ValidateServe checks the secrets the HTTP server cannot run without.
func (c *Config) ValidateServe() error {
	var missing []string
	for key, value := range map[string]string{
		"SECRET_KEY":    c.SecretKey,
		"TOTEM_API_KEY": c.TotemAPIKey,
		"MP_APP_ID":     c.MPAppID,
		"MP_SECRET_KEY": c.MPSecretKey,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
