// Package config loads service configuration from JSON files or the
// environment, selected by OPENCLAW_CONFIG_SOURCE.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid OPENCLAW_CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// EnvPrefix namespaces all environment-sourced settings.
	EnvPrefix = "OPENCLAW_"
)

// Validator is implemented by config structs that can check themselves
// after loading.
type Validator interface {
	Validate() error
}

// ConfigLoader loads configuration from a backing source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a Config with a file loader. If log is nil a test
// logger is substituted so loading never nil-derefs.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// LoadAndValidate loads configuration into dst and runs its Validate hook
// when present. The source is the file loader unless
// OPENCLAW_CONFIG_SOURCE=env is set.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	loader, err := c.resolveLoader()
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, path, dst); err != nil {
		return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

func (c *Config) resolveLoader() (ConfigLoader, error) {
	source := os.Getenv(EnvPrefix + "CONFIG_SOURCE")

	switch source {
	case "", configSourceFile:
		return c.defaultLoader, nil
	case configSourceEnv:
		return NewEnvConfigLoader(c.logger, EnvPrefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", errInvalidConfigSource, source)
	}
}
