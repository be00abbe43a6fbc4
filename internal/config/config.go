package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/spam-gateway/")
	v.AddConfigPath("$HOME/.spam-gateway")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("SPAM_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Classification service defaults
	v.SetDefault("service.domain", "api.antispam.typepad.com")
	v.SetDefault("service.port", 80)
	v.SetDefault("service.connect_timeout", "10s")
	v.SetDefault("service.protocol_version", "1.1")
	v.SetDefault("service.api_key", "")

	// Site identity defaults
	v.SetDefault("site.url", "http://localhost")
	v.SetDefault("site.platform", "WordPress")
	v.SetDefault("site.platform_version", "2.5")
	v.SetDefault("site.charset", "UTF-8")

	// Spam policy defaults
	v.SetDefault("spam.discard_old_post_spam", false)
	v.SetDefault("spam.discard_age", "720h")
	v.SetDefault("spam.retention", "360h")
	v.SetDefault("spam.whitelisted_domains", []string{})
	v.SetDefault("spam.max_comment_size", 65536)

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.sqlite_path", "/data/comments.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/comments")

	// Intake defaults
	v.SetDefault("intake.listen_address", "0.0.0.0:8970")
	v.SetDefault("intake.admin_token", "")

	// Maintenance defaults
	v.SetDefault("maintenance.policy", "random")
	v.SetDefault("maintenance.odds", 5000)
	v.SetDefault("maintenance.interval", 5000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
