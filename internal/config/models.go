package config

import (
	"fmt"
	"time"
)

// GatewayVersion identifies this gateway in the composite User-Agent.
const (
	GatewayName    = "CommentSpamGateway"
	GatewayVersion = "1.0.2"
)

// ServiceConfig represents the remote classification service settings
type ServiceConfig struct {
	Domain          string
	Port            int
	ConnectTimeout  time.Duration
	ProtocolVersion string
	APIKey          string
}

// SiteConfig represents the identity of the protected site
type SiteConfig struct {
	URL             string
	Platform        string
	PlatformVersion string
	Charset         string
}

// SpamConfig represents the spam handling policy
type SpamConfig struct {
	DiscardOldPostSpam bool
	DiscardAge         time.Duration
	Retention          time.Duration
	WhitelistedDomains []string
	MaxCommentSize     int
}

// StoreConfig represents the comment store settings
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// IntakeConfig represents the HTTP intake settings
type IntakeConfig struct {
	ListenAddress string
	AdminToken    string
}

// MaintenanceConfig represents the compaction trigger settings
type MaintenanceConfig struct {
	Policy   string
	Odds     int
	Interval int
}

// GetService returns the classification service configuration
func (c *Config) GetService() (ServiceConfig, error) {
	timeout, err := c.GetDuration("service.connect_timeout")
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("invalid service connect timeout: %w", err)
	}
	return ServiceConfig{
		Domain:          c.GetString("service.domain"),
		Port:            c.GetInt("service.port"),
		ConnectTimeout:  timeout,
		ProtocolVersion: c.GetString("service.protocol_version"),
		APIKey:          c.GetString("service.api_key"),
	}, nil
}

// GetSite returns the site identity configuration
func (c *Config) GetSite() SiteConfig {
	return SiteConfig{
		URL:             c.GetString("site.url"),
		Platform:        c.GetString("site.platform"),
		PlatformVersion: c.GetString("site.platform_version"),
		Charset:         c.GetString("site.charset"),
	}
}

// UserAgent renders the composite platform/gateway identity header.
func (s SiteConfig) UserAgent() string {
	return fmt.Sprintf("%s/%s | %s/%s", s.Platform, s.PlatformVersion, GatewayName, GatewayVersion)
}

// GetSpam returns the spam policy configuration
func (c *Config) GetSpam() (SpamConfig, error) {
	discardAge, err := c.GetDuration("spam.discard_age")
	if err != nil {
		return SpamConfig{}, fmt.Errorf("invalid discard age: %w", err)
	}
	retention, err := c.GetDuration("spam.retention")
	if err != nil {
		return SpamConfig{}, fmt.Errorf("invalid retention: %w", err)
	}
	return SpamConfig{
		DiscardOldPostSpam: c.GetBool("spam.discard_old_post_spam"),
		DiscardAge:         discardAge,
		Retention:          retention,
		WhitelistedDomains: c.GetStringSlice("spam.whitelisted_domains"),
		MaxCommentSize:     c.GetInt("spam.max_comment_size"),
	}, nil
}

// GetStore returns the comment store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetIntake returns the HTTP intake configuration
func (c *Config) GetIntake() IntakeConfig {
	return IntakeConfig{
		ListenAddress: c.GetString("intake.listen_address"),
		AdminToken:    c.GetString("intake.admin_token"),
	}
}

// GetMaintenance returns the maintenance policy configuration
func (c *Config) GetMaintenance() MaintenanceConfig {
	return MaintenanceConfig{
		Policy:   c.GetString("maintenance.policy"),
		Odds:     c.GetInt("maintenance.odds"),
		Interval: c.GetInt("maintenance.interval"),
	}
}
