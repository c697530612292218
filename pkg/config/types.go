package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Platform PlatformConfig `yaml:"platform"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	RoleSync RoleSyncConfig `yaml:"role_sync"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig selects the snapshot backend. Backend is "pebble"
// (default) or "file"; Path is the DB directory or the JSON file path.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// PlatformConfig holds the chat-platform boundary settings: where the
// REST API lives, which guild and channel are watched, and which roles
// participate in eligibility and trust.
type PlatformConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Token          string   `yaml:"token"`
	GuildID        string   `yaml:"guild_id"`
	VouchChannelID string   `yaml:"vouch_channel_id"`
	TrustedRoleID  string   `yaml:"trusted_role_id"`
	StaffRoleIDs   []string `yaml:"staff_role_ids"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// LedgerConfig holds the capacity bounds.
type LedgerConfig struct {
	MaxPerSubject int `yaml:"max_per_subject"`
	MaxTotal      int `yaml:"max_total"`
}

// RoleSyncConfig controls the trusted-role reconciliation.
type RoleSyncConfig struct {
	Threshold int      `yaml:"threshold"`
	RPS       float64  `yaml:"rps"`
	Burst     int      `yaml:"burst"`
	Timeout   Duration `yaml:"timeout"`
}

// SweepConfig holds configuration for the scheduled reconcile/repair run.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SecurityConfig holds operator API protection settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	APIKeys struct {
		Backend []string `yaml:"backend"`
		Admin   []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig holds event queue configuration.
type IngestConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// Defaults applied when the corresponding values are unset.
const (
	DefaultMaxPerSubject = 1000
	DefaultMaxTotal      = 2000
	DefaultThreshold     = 5
	DefaultQueueCapacity = 4096
)

// Normalize fills unset values with defaults.
func (c *Config) Normalize() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "pebble"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./.vouchdb"
	}
	if c.Ledger.MaxPerSubject <= 0 {
		c.Ledger.MaxPerSubject = DefaultMaxPerSubject
	}
	if c.Ledger.MaxTotal <= 0 {
		c.Ledger.MaxTotal = DefaultMaxTotal
	}
	if c.RoleSync.Threshold <= 0 {
		c.RoleSync.Threshold = DefaultThreshold
	}
	if c.RoleSync.Timeout.Duration() <= 0 {
		c.RoleSync.Timeout = Duration(10 * time.Second)
	}
	if c.Platform.RequestTimeout.Duration() <= 0 {
		c.Platform.RequestTimeout = Duration(10 * time.Second)
	}
	if c.Ingest.QueueCapacity <= 0 {
		c.Ingest.QueueCapacity = DefaultQueueCapacity
	}
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
