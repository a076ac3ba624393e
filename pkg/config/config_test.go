package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
)

type nestedTestConfig struct {
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

type testConfig struct {
	ListenAddr string           `json:"listen_addr"`
	Debug      bool             `json:"debug"`
	Retries    int              `json:"retries"`
	Tags       []string         `json:"tags"`
	Storage    nestedTestConfig `json:"storage"`

	validateErr error
}

func (c *testConfig) Validate() error { return c.validateErr }

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "admind.json")

	data := `{"listen_addr":":8080","debug":true,"storage":{"bucket":"openclaw-state"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	var cfg testConfig

	c := NewConfig(logger.NewTestLogger())
	require.NoError(t, c.LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "openclaw-state", cfg.Storage.Bucket)
}

func TestFileLoaderMissingFile(t *testing.T) {
	var cfg testConfig

	c := NewConfig(logger.NewTestLogger())
	err := c.LoadAndValidate(context.Background(), "/nonexistent/admind.json", &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errLoadConfigFailed)
}

func TestValidateHookFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "admind.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	errBad := errors.New("bad config")
	cfg := testConfig{validateErr: errBad}

	c := NewConfig(logger.NewTestLogger())
	err := c.LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("OPENCLAW_CONFIG_SOURCE", "env")
	t.Setenv("OPENCLAW_LISTEN_ADDR", ":9090")
	t.Setenv("OPENCLAW_RETRIES", "3")
	t.Setenv("OPENCLAW_TAGS", "a, b,c")
	t.Setenv("OPENCLAW_STORAGE_BUCKET", "openclaw-state")
	t.Setenv("OPENCLAW_STORAGE_TIMEOUT", "5m")

	var cfg testConfig

	c := NewConfig(logger.NewTestLogger())
	require.NoError(t, c.LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	assert.Equal(t, "openclaw-state", cfg.Storage.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.Storage.Timeout)
}

func TestEnvLoaderConfigJSON(t *testing.T) {
	t.Setenv("OPENCLAW_CONFIG_SOURCE", "env")
	t.Setenv("OPENCLAW_CONFIG_JSON", `{"listen_addr":":7070"}`)

	var cfg testConfig

	c := NewConfig(logger.NewTestLogger())
	require.NoError(t, c.LoadAndValidate(context.Background(), "", &cfg))
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestInvalidConfigSource(t *testing.T) {
	t.Setenv("OPENCLAW_CONFIG_SOURCE", "consul")

	var cfg testConfig

	c := NewConfig(logger.NewTestLogger())
	err := c.LoadAndValidate(context.Background(), "", &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalidConfigSource)
}
