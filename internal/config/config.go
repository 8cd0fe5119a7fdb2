// Package config loads the LifeLog agent configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kimhsiao/lifelog/backend/internal/db"
	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
	"github.com/kimhsiao/lifelog/backend/internal/telemetry"
)

// Default configuration values.
const (
	DefaultDirName         = ".lifelog"
	DefaultTokenFileName   = "token"
	DefaultRemoteTimeout   = 10 * time.Second
	DefaultDispatchTimeout = syncpkg.DefaultDispatchTimeout
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultListenAddr      = "127.0.0.1:8090"
)

// Config is the root configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	UserID    int64           `yaml:"user_id"`
	Remote    RemoteConfig    `yaml:"remote"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Desktop   DesktopConfig   `yaml:"desktop"`
}

// RemoteConfig points at the REST backend.
type RemoteConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	TokenFile string        `yaml:"token_file"` // relative paths resolve against data_dir
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	DispatchTimeout  time.Duration `yaml:"dispatch_timeout"`
	DiscardOnFailure []string      `yaml:"discard_on_failure"` // tables whose failed dispatches are dropped
	SyncOnStart      bool          `yaml:"sync_on_start"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig controls tracing and metrics export.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // none, stdout, otlp
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// DesktopConfig configures the desktop host.
type DesktopConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultDataDir returns ~/.lifelog, or .lifelog when the home directory
// is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		DataDir: DefaultDataDir(),
		UserID:  1,
		Remote: RemoteConfig{
			BaseURL:   "http://localhost:8000/api",
			Timeout:   DefaultRemoteTimeout,
			TokenFile: DefaultTokenFileName,
		},
		Sync: SyncConfig{
			DispatchTimeout: DefaultDispatchTimeout,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			Enabled:     tel.Enabled,
			Exporter:    string(tel.Exporter),
			Endpoint:    tel.Endpoint,
			ServiceName: tel.ServiceName,
			SampleRate:  tel.SampleRate,
		},
		Desktop: DesktopConfig{
			ListenAddr: DefaultListenAddr,
		},
	}
}

// Validate reports every invalid setting. The returned error carries
// ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	if len(errs) > 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "invalid configuration", errors.Join(errs...))
	}
	return nil
}

// Validate checks the remote section.
func (r *RemoteConfig) Validate() error {
	var errs []error
	if r.BaseURL != "" {
		u, err := url.Parse(r.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid base_url %q", r.BaseURL))
		}
	}
	if r.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", r.Timeout))
	}
	return errors.Join(errs...)
}

// Validate checks the sync section.
func (s *SyncConfig) Validate() error {
	var errs []error
	if s.DispatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch_timeout must be positive, got %s", s.DispatchTimeout))
	}
	for _, name := range s.DiscardOnFailure {
		if _, err := models.ParseTable(name); err != nil {
			errs = append(errs, fmt.Errorf("discard_on_failure: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the logging section.
func (l *LoggingConfig) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, err)
	}
	switch l.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, errors.New("rotation limits must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the telemetry section.
func (t *TelemetryConfig) Validate() error {
	var errs []error
	if _, err := telemetry.ParseExporter(t.Exporter); err != nil {
		errs = append(errs, err)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate))
	}
	return errors.Join(errs...)
}

// DatabasePath is the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, db.FileName)
}

// TokenPath resolves the token file against the data directory.
func (c *Config) TokenPath() string {
	if c.Remote.TokenFile == "" || filepath.IsAbs(c.Remote.TokenFile) {
		return c.Remote.TokenFile
	}
	return filepath.Join(c.DataDir, c.Remote.TokenFile)
}

// DiscardTables converts discard_on_failure to tables. Unknown names are
// skipped; Validate reports them.
func (c *Config) DiscardTables() []models.Table {
	var tables []models.Table
	for _, name := range c.Sync.DiscardOnFailure {
		if t, err := models.ParseTable(name); err == nil {
			tables = append(tables, t)
		}
	}
	return tables
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:      level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// TelemetryConfig converts the telemetry section for telemetry.New.
func (c *Config) TelemetryConfig() telemetry.Config {
	exporter, _ := telemetry.ParseExporter(c.Telemetry.Exporter)
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Telemetry.Enabled
	cfg.Exporter = exporter
	cfg.SampleRate = c.Telemetry.SampleRate
	if c.Telemetry.Endpoint != "" {
		cfg.Endpoint = c.Telemetry.Endpoint
	}
	if c.Telemetry.ServiceName != "" {
		cfg.ServiceName = c.Telemetry.ServiceName
	}
	return cfg
}

// EngineOptions converts the sync section. The caller fills in the
// acknowledger, broadcaster and telemetry.
func (c *Config) EngineOptions() syncpkg.Options {
	return syncpkg.Options{
		DispatchTimeout: c.Sync.DispatchTimeout,
		Policies:        syncpkg.DefaultPolicies(c.DiscardTables()...),
		SyncOnStart:     c.Sync.SyncOnStart,
	}
}
