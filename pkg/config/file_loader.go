package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileConfigLoader is the default ConfigLoader: one JSON document on the
// local filesystem. The env loader replaces it when OPENCLAW_CONFIG_SOURCE
// selects environment-sourced configuration.
type FileConfigLoader struct{}

// Load reads the JSON config at path into dst.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	return nil
}
