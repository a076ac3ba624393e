// Package pairing adapts the external openclaw CLI for device pairing
// operations. The CLI's textual contract is not strictly versioned, so
// success detection is heuristic; all heuristics live in this one adapter so
// a future strict-JSON CLI only needs a new adapter, not call-site changes.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox"
)

const (
	defaultCLIPath    = "openclaw"
	defaultGatewayURL = "ws://127.0.0.1:18789"
	defaultCLITimeout = 30 * time.Second
)

var (
	errInvalidDeviceID   = errors.New("invalid device identifier")
	errCLIFailed         = errors.New("openclaw CLI failed")
	errUnknownStateShape = errors.New("unrecognized pairing state shape")

	// validDeviceID is the command-injection boundary: identifiers reach a
	// shell, so anything outside word characters and hyphens is rejected
	// before interpolation.
	validDeviceID = regexp.MustCompile(`^[\w-]+$`)
)

// RemoveOutcome is the contract the remove fallback reports for the caller
// to branch on.
type RemoveOutcome string

const (
	RemoveRemoved  RemoveOutcome = "REMOVED"
	RemoveNotFound RemoveOutcome = "NOT_FOUND"
	RemoveError    RemoveOutcome = "ERROR"
)

// DeviceCLI is the capability boundary over the external pairing tool.
type DeviceCLI interface {
	ListDevices(ctx context.Context) (models.DeviceList, error)
	ApproveDevice(ctx context.Context, requestID string) (string, error)
	RemoveDevice(ctx context.Context, deviceID string) (RemoveOutcome, string, error)
}

// Config describes how to reach the CLI and the gateway it talks to.
type Config struct {
	CLIPath    string        `json:"cli_path"`
	GatewayURL string        `json:"gateway_url"`
	Token      string        `json:"token"`
	Timeout    time.Duration `json:"timeout"`

	// StateDirs are searched by the remove fallback when the CLI refuses.
	StateDirs []string `json:"state_dirs"`
}

func (c *Config) applyDefaults() {
	if c.CLIPath == "" {
		c.CLIPath = defaultCLIPath
	}

	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}

	if c.Timeout == 0 {
		c.Timeout = defaultCLITimeout
	}

	if c.StateDirs == nil {
		home, _ := os.UserHomeDir()
		c.StateDirs = []string{
			filepath.Join(home, ".openclaw", "devices"),
			filepath.Join(home, ".openclaw"),
			filepath.Join(home, ".config", "openclaw"),
		}
	}
}

// CLIAdapter implements DeviceCLI by shelling out through the sandbox.
type CLIAdapter struct {
	sandbox sandbox.Sandbox
	cfg     Config
	logger  logger.Logger
}

// NewCLIAdapter creates the adapter.
func NewCLIAdapter(sb sandbox.Sandbox, cfg Config, log logger.Logger) *CLIAdapter {
	cfg.applyDefaults()

	return &CLIAdapter{
		sandbox: sb,
		cfg:     cfg,
		logger:  log,
	}
}

func (a *CLIAdapter) connectionArgs() string {
	args := "--url " + a.cfg.GatewayURL

	if a.cfg.Token != "" {
		args += " --token " + a.cfg.Token
	}

	return args
}

// ListDevices queries the CLI for pending and paired devices. The CLI's
// output may interleave log lines with one JSON object; when no JSON can be
// extracted the raw text is returned for diagnosis instead of an error.
func (a *CLIAdapter) ListDevices(ctx context.Context) (models.DeviceList, error) {
	command := fmt.Sprintf("%s devices list --json %s", a.cfg.CLIPath, a.connectionArgs())

	result, err := a.sandbox.Exec(ctx, command, a.cfg.Timeout)
	if err != nil {
		return models.DeviceList{}, fmt.Errorf("%w: %w", errCLIFailed, err)
	}

	raw, ok := extractJSONObject(result.Stdout)
	if !ok {
		a.logger.Warn().Str("stdout", result.Stdout).Msg("no JSON object in CLI device listing")

		return models.DeviceList{
			RawOutput: strings.TrimSpace(result.Stdout),
			Stderr:    strings.TrimSpace(result.Stderr),
		}, nil
	}

	var list models.DeviceList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return models.DeviceList{
			RawOutput: strings.TrimSpace(result.Stdout),
			Stderr:    strings.TrimSpace(result.Stderr),
		}, nil
	}

	return list, nil
}

// ApproveDevice approves one pairing request. Success is a case-insensitive
// substring match OR a zero exit code; both signals are honored because the
// CLI's textual contract is loose.
func (a *CLIAdapter) ApproveDevice(ctx context.Context, requestID string) (string, error) {
	if !validDeviceID.MatchString(requestID) {
		return "", fmt.Errorf("%w: %q", errInvalidDeviceID, requestID)
	}

	command := fmt.Sprintf("%s devices approve %s %s", a.cfg.CLIPath, requestID, a.connectionArgs())

	result, err := a.sandbox.Exec(ctx, command, a.cfg.Timeout)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errCLIFailed, err)
	}

	if cliSucceeded(result, "approved") {
		message := strings.TrimSpace(result.Stdout)
		if message == "" {
			message = "device approved"
		}

		return message, nil
	}

	return "", fmt.Errorf("%w: exit %d: %s", errCLIFailed, result.ExitCode,
		strings.TrimSpace(result.Stdout+"\n"+result.Stderr))
}

// cliSucceeded applies the shared success heuristic.
func cliSucceeded(result models.ExecResult, keyword string) bool {
	if result.ExitCode == 0 {
		return true
	}

	out := strings.ToLower(result.Stdout)

	return strings.Contains(out, keyword) || strings.Contains(out, "success")
}
