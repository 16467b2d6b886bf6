package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME and XDG_DATA_HOME at a temp dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")
	return home
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "wonquotes", "won_quotes.json"), cfg.Store.Path)
	assert.Equal(t, 10000, cfg.Store.MaxRecords)
}

func TestLoad_ValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, t.TempDir(), `store:
  backend: pebble
  path: ~/kb
  max_records: 500
pricing:
  rules_path: /etc/wonquotes/rules.yaml
changelog:
  enabled: true
http:
  enabled: true
  addr: 127.0.0.1:9999
  shutdown_timeout: 3s
logging:
  level: debug
telemetry:
  sampling_rate: 0.5
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPebble, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, "kb"), cfg.Store.Path)
	assert.Equal(t, 500, cfg.Store.MaxRecords)
	assert.Equal(t, "/etc/wonquotes/rules.yaml", cfg.Pricing.RulesPath)
	assert.True(t, cfg.Changelog.Enabled)
	assert.Equal(t, filepath.Join(home, ".local", "share", "wonquotes"), cfg.Changelog.Dir)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.5, cfg.Telemetry.SamplingRate, 1e-9)
	assert.True(t, cfg.Telemetry.MetricsEnabled)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store:\n  max_records: 500\n", 0600)
	t.Setenv("WONQUOTES_STORE_MAX_RECORDS", "42")
	t.Setenv("WONQUOTES_LOGGING_FORMAT", "console")
	t.Setenv("WONQUOTES_CHANGELOG_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WONQUOTES_TELEMETRY_TLS_SKIP_VERIFY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Store.MaxRecords)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Changelog.KafkaBrokers)
	assert.True(t, cfg.Telemetry.TLSSkipVerify)
}

func TestEnvKey(t *testing.T) {
	for in, want := range map[string]string{
		"WONQUOTES_STORE_PATH":              "store.path",
		"WONQUOTES_STORE_MAX_RECORDS":       "store.max_records",
		"WONQUOTES_PRICING_RULES_PATH":      "pricing.rules_path",
		"WONQUOTES_HTTP_SHUTDOWN_TIMEOUT":   "http.shutdown_timeout",
		"WONQUOTES_TELEMETRY_SAMPLING_RATE": "telemetry.sampling_rate",
		"WONQUOTES_DEBUG":                   "debug",
	} {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store: [unclosed\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoad_Validation(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store:\n  backend: bolt\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on Windows")
	}
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store:\n  max_records: 5\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_ReadOnlyPermissionsAccepted(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on Windows")
	}
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store:\n  max_records: 5\n", 0400)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Store.MaxRecords)
}

func TestLoad_FileTooLarge(t *testing.T) {
	setupTestHome(t)
	large := bytes.Repeat([]byte("# comment line\n"), 150000)
	path := writeConfig(t, t.TempDir(), string(large), 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_Directory(t *testing.T) {
	setupTestHome(t)
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/bidder")
	assert.Equal(t, "/home/bidder", expandHome("~"))
	assert.Equal(t, "/home/bidder/kb/quotes.json", expandHome("~/kb/quotes.json"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "~other/path", expandHome("~other/path"))
}
