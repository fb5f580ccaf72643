package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/tagger/internal/output"
)

// testEnv sets up isolated config dir, viper, output, and store for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults()

	// Initialize output into buffers
	ui = &output.UI{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	dataStore = nil
	configForce, configYAML = false, false
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	return dir
}

// stdout returns everything written to ui.Out so far.
func stdout() string {
	return ui.Out.(*bytes.Buffer).String()
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tagger configuration")
	assert.Contains(t, string(data), "default_source")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tagger configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
	assert.Contains(t, stdout(), "(file)")
}

func TestConfigShow_EnvOverride(t *testing.T) {
	testEnv(t)
	t.Setenv("TAGGER_PORT", "9090")

	require.NoError(t, configShowRun())
	assert.Contains(t, stdout(), "(env: TAGGER_PORT)")
}

func TestDefaults_DBPathUnderConfigDir(t *testing.T) {
	dir := testEnv(t)
	assert.Equal(t, filepath.Join(dir, "tagger.db"), viper.GetString("db_path"))
	assert.Equal(t, 8080, viper.GetInt("port"))
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("warn", false).Enabled(ctx, slog.LevelWarn))
	assert.False(t, newLogger("warn", false).Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger("warn", true).Enabled(ctx, slog.LevelDebug), "verbose forces debug")
	assert.True(t, newLogger("bogus", false).Enabled(ctx, slog.LevelInfo))
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("port: 9000\nlog:\n  level: debug\n"), 0644))
	file := fileConfig(cfgPath)
	require.NotNil(t, file)

	t.Setenv("TAGGER_DB_PATH", "/tmp/x.db")
	assert.Equal(t, "(env: TAGGER_DB_PATH)", detectSource("db_path", file))
	assert.Equal(t, "(file)", detectSource("port", file))
	assert.Equal(t, "(file)", detectSource("log.level", file))
	assert.Equal(t, "(default)", detectSource("field.default_source", file))
	assert.Equal(t, "(default)", detectSource("port", nil))
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "TAGGER_PORT", envVarFor("port"))
	assert.Equal(t, "TAGGER_FIELD_DEFAULT_SOURCE", envVarFor("field.default_source"))
}

func TestConfigInit_RoundTrips(t *testing.T) {
	dir := testEnv(t)
	viper.Set("field.default_source", "taggroup:3")
	viper.Set("log.level", "warn")

	require.NoError(t, configInitRun())

	file := fileConfig(filepath.Join(dir, "config.yaml"))
	require.NotNil(t, file, "rendered config must parse")
	assert.Equal(t, "taggroup:3", file.GetString("field.default_source"))
	assert.Equal(t, "warn", file.GetString("log.level"))
	assert.Equal(t, 8080, file.GetInt("port"))
	assert.Equal(t, filepath.Join(dir, "tagger.db"), file.GetString("db_path"))
}

func TestConfigShow_YAML(t *testing.T) {
	testEnv(t)
	configYAML = true
	t.Cleanup(func() { configYAML = false })

	require.NoError(t, configShowRun())

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout()), &parsed))
	assert.Equal(t, 8080, parsed["port"])
	assert.Equal(t, map[string]any{"level": "info"}, parsed["log"])
}

func TestYAMLScalar(t *testing.T) {
	assert.Equal(t, `""`, yamlScalar(""))
	assert.Equal(t, "8080", yamlScalar(8080))
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}
