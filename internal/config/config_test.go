package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
	"github.com/kimhsiao/lifelog/backend/internal/telemetry"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, DefaultRemoteTimeout, cfg.Remote.Timeout)
	assert.Equal(t, syncpkg.DefaultDispatchTimeout, cfg.Sync.DispatchTimeout)
	assert.Empty(t, cfg.Sync.DiscardOnFailure)
	assert.False(t, cfg.Sync.SyncOnStart)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, DefaultListenAddr, cfg.Desktop.ListenAddr)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"bad base url", func(c *Config) { c.Remote.BaseURL = "localhost" }, "invalid base_url"},
		{"zero remote timeout", func(c *Config) { c.Remote.Timeout = 0 }, "timeout must be positive"},
		{"negative dispatch timeout", func(c *Config) { c.Sync.DispatchTimeout = -time.Second }, "dispatch_timeout must be positive"},
		{"unknown discard table", func(c *Config) { c.Sync.DiscardOnFailure = []string{"workouts", "sleep"} }, `unknown table "sleep"`},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"bad exporter", func(c *Config) { c.Telemetry.Exporter = "jaeger" }, "unknown telemetry exporter"},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"sample rate below zero", func(c *Config) { c.Telemetry.SampleRate = -0.1 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_reportsEveryProblem(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.DataDir = ""
	cfg.Telemetry.SampleRate = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
	assert.Contains(t, err.Error(), "sample_rate")
}

func TestEmptyBaseURLIsAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Remote.BaseURL = ""
	assert.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.DataDir = "/var/lib/lifelog"

	assert.Equal(t, "/var/lib/lifelog/lifelog.db", cfg.DatabasePath())
	assert.Equal(t, "/var/lib/lifelog/token", cfg.TokenPath())

	cfg.Remote.TokenFile = "/run/secrets/lifelog-token"
	assert.Equal(t, "/run/secrets/lifelog-token", cfg.TokenPath())

	cfg.Remote.TokenFile = ""
	assert.Empty(t, cfg.TokenPath())
}

func TestConversions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sync.DiscardOnFailure = []string{"workouts", "bogus"}
	cfg.Sync.SyncOnStart = true
	cfg.Sync.DispatchTimeout = 3 * time.Second
	cfg.Logging.Level = "debug"
	cfg.Logging.File = "/tmp/lifelog.log"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "stdout"
	cfg.Telemetry.ServiceName = ""

	assert.Equal(t, []models.Table{models.TableWorkouts}, cfg.DiscardTables())

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "/tmp/lifelog.log", lc.File)

	tc := cfg.TelemetryConfig()
	assert.True(t, tc.Enabled)
	assert.Equal(t, telemetry.ExporterStdout, tc.Exporter)
	assert.Equal(t, "lifelog", tc.ServiceName)

	opts := cfg.EngineOptions()
	assert.Equal(t, 3*time.Second, opts.DispatchTimeout)
	assert.True(t, opts.SyncOnStart)
	assert.Equal(t, syncpkg.Discard, opts.Policies[models.TableWorkouts].OnFailure)
	assert.Equal(t, syncpkg.Propagate, opts.Policies[models.TableNutrition].OnFailure)
}

// =====================================================
// Loader
// =====================================================

func TestLoader_missingFileYieldsDefaults(t *testing.T) {
	l, err := NewLoader(t.TempDir())
	require.NoError(t, err)

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoader_partialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
data_dir: /data
remote:
  base_url: https://lifelog.example.com/api
sync:
  dispatch_timeout: 2s
  discard_on_failure: [workouts]
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	l, err := NewLoader(dir)
	require.NoError(t, err)
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, "https://lifelog.example.com/api", cfg.Remote.BaseURL)
	assert.Equal(t, DefaultRemoteTimeout, cfg.Remote.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Sync.DispatchTimeout)
	assert.Equal(t, []string{"workouts"}, cfg.Sync.DiscardOnFailure)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("remote: [unclosed"), 0o600))

	l, err := NewLoader(dir)
	require.NoError(t, err)
	_, err = l.Load("")
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoader_saveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	l, err := NewLoader(dir)
	require.NoError(t, err)

	cfg := NewDefaultConfig()
	cfg.DataDir = "/data"
	cfg.UserID = 9
	cfg.Sync.DiscardOnFailure = []string{"nutrition"}
	cfg.Sync.DispatchTimeout = 1500 * time.Millisecond
	require.NoError(t, l.Save(cfg, ""))

	info, err := os.Stat(l.DefaultConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(l.DefaultConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "dispatch_timeout: 1.5s")

	loaded, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
