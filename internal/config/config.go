package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/boardwave/boardsync/internal/collab"
	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/coordination"
	"github.com/boardwave/boardsync/internal/transport"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// BOARDSYNC_SERVER_URL or BOARDSYNC_COLLAB_LOCK_TTL_MS.
const EnvPrefix = "BOARDSYNC"

// Config represents the complete boardsync configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Collab    CollabConfig    `mapstructure:"collab" yaml:"collab"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig identifies the collaboration server
type ServerConfig struct {
	// URL is the WebSocket endpoint, ws:// or wss://
	URL string `mapstructure:"url" yaml:"url"`
	// HandshakeTimeoutMs bounds the WebSocket opening handshake
	HandshakeTimeoutMs int `mapstructure:"handshake_timeout_ms" yaml:"handshake_timeout_ms"`
}

// SessionConfig holds the identity used when connecting.
// The token is normally supplied through BOARDSYNC_SESSION_TOKEN rather than
// written to the config file.
type SessionConfig struct {
	Token     string `mapstructure:"token" yaml:"token,omitempty"`
	UserID    string `mapstructure:"user_id" yaml:"user_id"`
	UserName  string `mapstructure:"user_name" yaml:"user_name"`
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
}

// TransportConfig controls heartbeat and reconnect behavior
type TransportConfig struct {
	// HeartbeatIntervalMs is the ping period while connected (0 disables)
	HeartbeatIntervalMs int `mapstructure:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms"`
	// ReconnectBaseDelayMs is the delay before the first retry; it doubles per attempt
	ReconnectBaseDelayMs int `mapstructure:"reconnect_base_delay_ms" yaml:"reconnect_base_delay_ms"`
	// MaxReconnectAttempts is the number of retries before giving up (0 disables reconnect)
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	// WriteTimeoutMs is the per-frame write deadline (0 disables)
	WriteTimeoutMs int `mapstructure:"write_timeout_ms" yaml:"write_timeout_ms"`
}

// CollabConfig controls the collaboration coordinator
type CollabConfig struct {
	// DebounceMs is the quiet period before a pending edit is sent
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// LockTTLMs is how long an advisory lock lives before it expires
	LockTTLMs int `mapstructure:"lock_ttl_ms" yaml:"lock_ttl_ms"`
	// ConflictWindowMs is the window in which edits by different users conflict
	ConflictWindowMs int `mapstructure:"conflict_window_ms" yaml:"conflict_window_ms"`
	// HistoryLimit bounds the change history
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
	// MergeStrategy names the strategy used for "merge" resolutions
	MergeStrategy string `mapstructure:"merge_strategy" yaml:"merge_strategy"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for the log file; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:                "",
			HandshakeTimeoutMs: ms(transport.DefaultHandshakeTimeout),
		},
		Transport: TransportConfig{
			HeartbeatIntervalMs:  ms(transport.DefaultHeartbeatInterval),
			ReconnectBaseDelayMs: ms(transport.DefaultReconnectBaseDelay),
			MaxReconnectAttempts: transport.DefaultMaxReconnectAttempts,
			WriteTimeoutMs:       ms(transport.DefaultWriteTimeout),
		},
		Collab: CollabConfig{
			DebounceMs:       ms(collab.DefaultDebounce),
			LockTTLMs:        ms(collab.DefaultLockTTL),
			ConflictWindowMs: ms(collab.DefaultConflictWindow),
			HistoryLimit:     collab.DefaultHistoryLimit,
			MergeStrategy:    conflict.StrategyLastWriterWins,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "", // stderr
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// HandshakeTimeout returns the handshake timeout as a time.Duration
func (c *ServerConfig) HandshakeTimeout() time.Duration { return millis(c.HandshakeTimeoutMs) }

// HeartbeatInterval returns the heartbeat interval as a time.Duration (0 means disabled)
func (c *TransportConfig) HeartbeatInterval() time.Duration { return millis(c.HeartbeatIntervalMs) }

// ReconnectBaseDelay returns the first reconnect delay as a time.Duration
func (c *TransportConfig) ReconnectBaseDelay() time.Duration { return millis(c.ReconnectBaseDelayMs) }

// WriteTimeout returns the write deadline as a time.Duration (0 means disabled)
func (c *TransportConfig) WriteTimeout() time.Duration { return millis(c.WriteTimeoutMs) }

// Debounce returns the edit debounce as a time.Duration
func (c *CollabConfig) Debounce() time.Duration { return millis(c.DebounceMs) }

// LockTTL returns the lock lifetime as a time.Duration
func (c *CollabConfig) LockTTL() time.Duration { return millis(c.LockTTLMs) }

// ConflictWindow returns the conflict window as a time.Duration
func (c *CollabConfig) ConflictWindow() time.Duration { return millis(c.ConflictWindowMs) }

// Hub converts the configuration into Hub settings.
func (c *Config) Hub() coordination.Config {
	return coordination.Config{
		Transport: transport.Config{
			URL:                  c.Server.URL,
			HeartbeatInterval:    c.Transport.HeartbeatInterval(),
			ReconnectBaseDelay:   c.Transport.ReconnectBaseDelay(),
			MaxReconnectAttempts: c.Transport.MaxReconnectAttempts,
			WriteTimeout:         c.Transport.WriteTimeout(),
			HandshakeTimeout:     c.Server.HandshakeTimeout(),
		},
		Debounce:       c.Collab.Debounce(),
		LockTTL:        c.Collab.LockTTL(),
		ConflictWindow: c.Collab.ConflictWindow(),
		HistoryLimit:   c.Collab.HistoryLimit,
		MergeStrategy:  c.Collab.MergeStrategy,
	}
}

// Credentials returns the session identity for connecting.
func (c *Config) Credentials() transport.Credentials {
	return transport.Credentials{
		Token:     c.Session.Token,
		UserID:    c.Session.UserID,
		ProjectID: c.Session.ProjectID,
	}
}

// SetDefaults registers default values with the global viper instance and
// enables BOARDSYNC_* environment overrides
func SetDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Server defaults
	v.SetDefault("server.url", defaults.Server.URL)
	v.SetDefault("server.handshake_timeout_ms", defaults.Server.HandshakeTimeoutMs)

	// Session defaults; registered so env overrides are seen by Unmarshal
	v.SetDefault("session.token", defaults.Session.Token)
	v.SetDefault("session.user_id", defaults.Session.UserID)
	v.SetDefault("session.user_name", defaults.Session.UserName)
	v.SetDefault("session.project_id", defaults.Session.ProjectID)

	// Transport defaults
	v.SetDefault("transport.heartbeat_interval_ms", defaults.Transport.HeartbeatIntervalMs)
	v.SetDefault("transport.reconnect_base_delay_ms", defaults.Transport.ReconnectBaseDelayMs)
	v.SetDefault("transport.max_reconnect_attempts", defaults.Transport.MaxReconnectAttempts)
	v.SetDefault("transport.write_timeout_ms", defaults.Transport.WriteTimeoutMs)

	// Collab defaults
	v.SetDefault("collab.debounce_ms", defaults.Collab.DebounceMs)
	v.SetDefault("collab.lock_ttl_ms", defaults.Collab.LockTTLMs)
	v.SetDefault("collab.conflict_window_ms", defaults.Collab.ConflictWindowMs)
	v.SetDefault("collab.history_limit", defaults.Collab.HistoryLimit)
	v.SetDefault("collab.merge_strategy", defaults.Collab.MergeStrategy)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	// Metrics defaults
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "boardsync")
	}
	// Fall back to ~/.config/boardsync
	home, err := os.UserHomeDir()
	if err != nil {
		return ".boardsync"
	}
	return filepath.Join(home, ".config", "boardsync")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
