package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RemoveDevice unpairs a device. The CLI is tried first; when it refuses,
// the pairing state files under the known config directories are edited
// directly. The returned outcome is REMOVED, NOT_FOUND or ERROR.
func (a *CLIAdapter) RemoveDevice(ctx context.Context, deviceID string) (RemoveOutcome, string, error) {
	if !validDeviceID.MatchString(deviceID) {
		return RemoveError, "", fmt.Errorf("%w: %q", errInvalidDeviceID, deviceID)
	}

	command := fmt.Sprintf("%s devices remove %s %s", a.cfg.CLIPath, deviceID, a.connectionArgs())

	result, err := a.sandbox.Exec(ctx, command, a.cfg.Timeout)
	if err == nil && cliSucceeded(result, "removed") {
		message := strings.TrimSpace(result.Stdout)
		if message == "" {
			message = "device removed"
		}

		return RemoveRemoved, message, nil
	}

	if err != nil {
		a.logger.Warn().Err(err).Msg("CLI removal failed, falling back to state file edit")
	} else {
		a.logger.Warn().Int("exit_code", result.ExitCode).Str("stdout", result.Stdout).
			Msg("CLI refused removal, falling back to state file edit")
	}

	return a.removeFromStateFiles(deviceID)
}

// removeFromStateFiles walks the configured state directories for JSON files
// mentioning the device id and strips the matching entries. Files are only
// rewritten when a match was actually found.
func (a *CLIAdapter) removeFromStateFiles(deviceID string) (RemoveOutcome, string, error) {
	removed := false
	sawError := false

	for _, dir := range a.cfg.StateDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// A missing legacy directory is normal.
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			path := filepath.Join(dir, entry.Name())

			data, err := os.ReadFile(path)
			if err != nil || !strings.Contains(string(data), deviceID) {
				continue
			}

			edited, found, err := stripDevice(data, deviceID)
			if err != nil {
				a.logger.Warn().Err(err).Str("path", path).Msg("failed to edit pairing state file")
				sawError = true

				continue
			}

			if !found {
				continue
			}

			if err := os.WriteFile(path, edited, 0o600); err != nil {
				a.logger.Error().Err(err).Str("path", path).Msg("failed to rewrite pairing state file")
				sawError = true

				continue
			}

			a.logger.Info().Str("path", path).Str("device_id", deviceID).
				Msg("removed device from pairing state file")

			removed = true
		}
	}

	switch {
	case removed:
		return RemoveRemoved, "device removed from pairing state", nil
	case sawError:
		return RemoveError, "", fmt.Errorf("%w: state file edit failed", errCLIFailed)
	default:
		return RemoveNotFound, "device not found", nil
	}
}

// stripDevice removes entries matching deviceID from a pairing state
// document. Both shapes the gateway has historically written are tolerated:
// an array of records carrying a deviceId/requestId/id field, and an object
// keyed by device id.
func stripDevice(data []byte, deviceID string) (edited []byte, found bool, err error) {
	var records []map[string]interface{}

	if err := json.Unmarshal(data, &records); err == nil {
		kept := records[:0]

		for _, rec := range records {
			if recordMatches(rec, deviceID) {
				found = true
				continue
			}

			kept = append(kept, rec)
		}

		if !found {
			return nil, false, nil
		}

		edited, err := json.MarshalIndent(kept, "", "  ")

		return edited, true, err
	}

	var keyed map[string]json.RawMessage

	if err := json.Unmarshal(data, &keyed); err == nil {
		if _, ok := keyed[deviceID]; ok {
			delete(keyed, deviceID)

			edited, err := json.MarshalIndent(keyed, "", "  ")

			return edited, true, err
		}

		return nil, false, nil
	}

	return nil, false, errUnknownStateShape
}

func recordMatches(rec map[string]interface{}, deviceID string) bool {
	for _, key := range []string{"deviceId", "requestId", "id"} {
		if v, ok := rec[key].(string); ok && v == deviceID {
			return true
		}
	}

	return false
}
